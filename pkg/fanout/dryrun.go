package fanout

import (
	"context"

	"github.com/cuemby/remindsync/pkg/log"
)

// LogPusher logs pushes instead of sending them
type LogPusher struct{}

// Push implements Pusher
func (LogPusher) Push(ctx context.Context, tokens []string, data map[string]string) ([]PushResult, error) {
	logger := log.WithComponent("fanout-dry-run")
	results := make([]PushResult, 0, len(tokens))
	for _, token := range tokens {
		logger.Info().
			Str("token", token).
			Interface("data", data).
			Msg("Would push")
		results = append(results, PushResult{Token: token})
	}
	return results, nil
}
