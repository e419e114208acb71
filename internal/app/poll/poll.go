// Package poll observes server-side jobs that offer no push channel.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/rs/zerolog/log"
)

// Status is one observation of a job.
type Status[T any] struct {
	Done   bool
	Result T
	// Failed carries the job's own error detail; it is terminal like Done.
	Failed string
}

// Check performs one round-trip to the job. A returned error stops the watch.
type Check[T any] func(ctx context.Context) (Status[T], error)

// Watch calls check immediately and then every w.Interval until the job is
// done, reports an error, or w.Deadline elapses (zero means no deadline).
// A deadline yields domain.ErrTimeout; a job-reported failure yields *domain.JobError.
// No check is issued after Watch returns.
func Watch[T any](ctx context.Context, w domain.JobWatch, check Check[T]) (T, error) {
	var zero T
	if w.Interval <= 0 {
		return zero, fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidState)
	}
	if w.StartedAt.IsZero() {
		w.StartedAt = time.Now()
	}

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if w.Deadline > 0 {
		timer := time.NewTimer(time.Until(w.StartedAt.Add(w.Deadline)))
		defer timer.Stop()
		deadline = timer.C
	}

	logger := log.With().Str("module", "poll").Str("session", string(w.Session)).Str("kind", string(w.Kind)).Logger()
	timeout := func() (T, error) {
		logger.Info().Dur("deadline", w.Deadline).Msg("gave up waiting")
		return zero, fmt.Errorf("%w: %s after %s", domain.ErrTimeout, w.Kind, w.Deadline)
	}
	attempt := 0
	for {
		// the ticker and the deadline can be ready together; the deadline wins
		if w.Deadline > 0 && time.Since(w.StartedAt) >= w.Deadline {
			return timeout()
		}
		attempt++
		st, err := check(ctx)
		switch {
		case err != nil:
			logger.Warn().Err(err).Int("attempt", attempt).Msg("check failed")
			return zero, err
		case st.Failed != "":
			logger.Info().Int("attempt", attempt).Str("detail", st.Failed).Msg("job failed")
			return zero, &domain.JobError{Kind: w.Kind, Detail: st.Failed}
		case st.Done:
			logger.Info().Int("attempt", attempt).Dur("elapsed", time.Since(w.StartedAt)).Msg("job done")
			return st.Result, nil
		}
		logger.Debug().Int("attempt", attempt).Msg("still processing")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-deadline:
			return timeout()
		case <-ticker.C:
		}
	}
}
