// Package intake turns raw reminder text into drafts. It prefers the AI
// parser when one is configured and always falls back to the local extractor.
// Only the newest request's result is ever returned; older in-flight calls are
// cancelled and their results discarded.
package intake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cuemby/remindsync/pkg/aiparse"
	"github.com/cuemby/remindsync/pkg/extract"
	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/metrics"
)

// ErrSuperseded is returned when a newer Parse call started before this one finished
var ErrSuperseded = errors.New("parse superseded by a newer request")

// DefaultTimeout bounds the AI attempt
const DefaultTimeout = 8 * time.Second

// AIParser is the subset of aiparse.Parser used here
type AIParser interface {
	Parse(ctx context.Context, text string, now time.Time) aiparse.Result
}

// Intake coordinates parse requests
type Intake struct {
	ai      AIParser
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// New creates an intake. ai may be nil, in which case only the local extractor runs.
func New(ai AIParser, timeout time.Duration) *Intake {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Intake{
		ai:      ai,
		timeout: timeout,
		now:     time.Now,
	}
}

// Parse produces a draft for text. It cancels any request still in flight.
func (in *Intake) Parse(ctx context.Context, text string) (extract.Draft, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in.mu.Lock()
	in.seq++
	mine := in.seq
	if in.cancel != nil {
		in.cancel()
	}
	in.cancel = cancel
	in.mu.Unlock()

	draft := in.parse(ctx, text)

	in.mu.Lock()
	defer in.mu.Unlock()
	if mine != in.seq {
		return extract.Draft{}, ErrSuperseded
	}
	in.cancel = nil
	if err := ctx.Err(); err != nil {
		return extract.Draft{}, err
	}

	metrics.ParseRequests.WithLabelValues(string(draft.Source)).Inc()
	return draft, nil
}

func (in *Intake) parse(ctx context.Context, text string) extract.Draft {
	now := in.now()
	logger := log.WithComponent("intake")

	if in.ai != nil {
		actx, cancel := context.WithTimeout(ctx, in.timeout)
		res := in.ai.Parse(actx, text, now)
		cancel()

		if res.Kind == aiparse.KindOK {
			return res.Draft
		}
		metrics.ParseFallbacks.WithLabelValues(res.Kind.String()).Inc()
		logger.Debug().
			Err(res.Err).
			Str("kind", res.Kind.String()).
			Msg("AI parse failed, using local extractor")
	}

	return extract.ParseLocally(text, now)
}
