// Package fallback retries an operation over an ordered list of alternate
// sources until one of them succeeds.
package fallback

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Config struct {
	Sources flagext.StringSlice `yaml:"sources"`
	Delay   time.Duration       `yaml:"delay"`
}

func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	f.Var(&c.Sources, prefix+"source", "Alternate video id or URL tried when the requested one fails. Can be repeated.")
	f.DurationVar(&c.Delay, prefix+"delay", 2*time.Second, "Pause between two candidates.")
}

// Error is returned when every candidate failed. Only the last failure is
// kept; earlier ones are logged.
type Error struct {
	Attempts int
	Last     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("all %d candidates failed, last: %v", e.Attempts, e.Last)
}

func (e *Error) Unwrap() error { return e.Last }

func (e *Error) Cause() error { return e.Last }

type Strategy struct {
	delay    time.Duration
	log      log.Logger
	attempts *prometheus.CounterVec

	// wait blocks for d or until ctx is done.
	wait func(ctx context.Context, d time.Duration) error
}

func NewStrategy(delay time.Duration, reg prometheus.Registerer, logger log.Logger) *Strategy {
	return &Strategy{
		delay: delay,
		log:   log.With(logger, "component", "fallback"),
		attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fallback_attempts_total",
			Help: "Fallback candidate attempts by operation and outcome.",
		}, []string{"op", "outcome"}),
		wait: sleep,
	}
}

// TryInOrder applies op to each candidate in order and returns the first
// success. A failed candidate is followed by the strategy delay, except the
// last one.
func TryInOrder[T any](ctx context.Context, s *Strategy, opName string, candidates []string, op func(ctx context.Context, candidate string) (T, error)) (T, error) {
	var (
		zero T
		last error
	)

	if len(candidates) == 0 {
		return zero, &Error{Attempts: 0, Last: fmt.Errorf("%s: no candidates", opName)}
	}

	for i, c := range candidates {
		res, err := op(ctx, c)
		if err == nil {
			s.attempts.WithLabelValues(opName, "success").Inc()
			if i > 0 {
				_ = level.Info(s.log).Log("msg", "fallback candidate succeeded", "op", opName, "candidate", c, "attempt", i+1)
			}
			return res, nil
		}

		s.attempts.WithLabelValues(opName, "failure").Inc()
		_ = level.Warn(s.log).Log("msg", "fallback candidate failed", "op", opName, "candidate", c, "attempt", i+1, "err", err)
		last = err

		if i == len(candidates)-1 {
			break
		}
		if err := s.wait(ctx, s.delay); err != nil {
			return zero, &Error{Attempts: i + 1, Last: last}
		}
	}

	return zero, &Error{Attempts: len(candidates), Last: last}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
