package intake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/remindsync/pkg/aiparse"
	"github.com/cuemby/remindsync/pkg/extract"
)

var fixedNow = time.Date(2025, 3, 12, 14, 20, 0, 0, time.UTC)

type fakeAI struct {
	result aiparse.Result
	block  chan struct{}
	calls  int
	mu     sync.Mutex
}

func (f *fakeAI) Parse(ctx context.Context, text string, now time.Time) aiparse.Result {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return aiparse.Result{Kind: aiparse.KindUnavailable, Err: ctx.Err()}
		}
	}
	return f.result
}

func newIntake(ai AIParser) *Intake {
	in := New(ai, time.Second)
	in.now = func() time.Time { return fixedNow }
	return in
}

func TestParseLocalOnly(t *testing.T) {
	in := New(nil, 0)
	in.now = func() time.Time { return fixedNow }

	d, err := in.Parse(context.Background(), "Coffee tomorrow 10am")
	require.NoError(t, err)
	assert.Equal(t, extract.SourceLocal, d.Source)
	assert.Equal(t, time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC), d.At)
	assert.Equal(t, DefaultTimeout, in.timeout)
}

func TestParseUsesAI(t *testing.T) {
	aiDraft := extract.Draft{Title: "From AI", Source: extract.SourceAI, At: fixedNow.Add(time.Hour)}
	in := newIntake(&fakeAI{result: aiparse.Result{Kind: aiparse.KindOK, Draft: aiDraft}})

	d, err := in.Parse(context.Background(), "whatever")
	require.NoError(t, err)
	assert.Equal(t, aiDraft, d)
}

func TestParseFallsBack(t *testing.T) {
	for _, kind := range []aiparse.Kind{aiparse.KindMalformed, aiparse.KindUnavailable} {
		t.Run(kind.String(), func(t *testing.T) {
			in := newIntake(&fakeAI{result: aiparse.Result{Kind: kind, Err: errors.New("boom")}})

			d, err := in.Parse(context.Background(), "buy milk in 10 minutes")
			require.NoError(t, err)
			assert.Equal(t, extract.SourceLocal, d.Source)
			assert.Equal(t, "Buy Milk", d.Title)
			assert.Equal(t, fixedNow.Add(10*time.Minute), d.At)
		})
	}
}

func TestParseAITimeoutFallsBack(t *testing.T) {
	ai := &fakeAI{block: make(chan struct{})}
	in := New(ai, 20*time.Millisecond)
	in.now = func() time.Time { return fixedNow }

	d, err := in.Parse(context.Background(), "stretch in 2 hours")
	require.NoError(t, err)
	assert.Equal(t, extract.SourceLocal, d.Source)
	assert.Equal(t, fixedNow.Add(2*time.Hour), d.At)
}

func TestParseNewestWins(t *testing.T) {
	ai := &fakeAI{
		block:  make(chan struct{}),
		result: aiparse.Result{Kind: aiparse.KindOK, Draft: extract.Draft{Title: "slow", Source: extract.SourceAI}},
	}
	in := New(ai, time.Minute)
	in.now = func() time.Time { return fixedNow }

	firstErr := make(chan error, 1)
	go func() {
		_, err := in.Parse(context.Background(), "first")
		firstErr <- err
	}()

	require.Eventually(t, func() bool {
		ai.mu.Lock()
		defer ai.mu.Unlock()
		return ai.calls == 1
	}, time.Second, 5*time.Millisecond)

	// the second request cancels the first one; unblock it afterwards
	in.ai = nil
	d, err := in.Parse(context.Background(), "second tomorrow")
	require.NoError(t, err)
	assert.Equal(t, extract.SourceLocal, d.Source)

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("first request never returned")
	}
	close(ai.block)
}

func TestParseCallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := newIntake(nil)
	_, err := in.Parse(ctx, "buy milk")
	assert.ErrorIs(t, err, context.Canceled)
}
