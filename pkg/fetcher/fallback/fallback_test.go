package fallback

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []string
}

func newTestStrategy(r *recorder) *Strategy {
	s := NewStrategy(2*time.Second, prometheus.NewPedanticRegistry(), log.NewNopLogger())
	s.wait = func(_ context.Context, d time.Duration) error {
		r.events = append(r.events, "wait "+d.String())
		return nil
	}
	return s
}

func TestTryInOrderReturnsFirstSuccess(t *testing.T) {
	r := &recorder{}
	s := newTestStrategy(r)

	res, err := TryInOrder(context.Background(), s, "test", []string{"A", "B", "C"},
		func(_ context.Context, c string) (string, error) {
			r.events = append(r.events, "try "+c)
			if c == "C" {
				return "result " + c, nil
			}
			return "", errors.Errorf("%s unavailable", c)
		})

	require.NoError(t, err)
	assert.Equal(t, "result C", res)
	assert.Equal(t, []string{"try A", "wait 2s", "try B", "wait 2s", "try C"}, r.events)
	assert.Equal(t, 2.0, testutil.ToFloat64(s.attempts.WithLabelValues("test", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.attempts.WithLabelValues("test", "success")))
}

func TestTryInOrderShortCircuits(t *testing.T) {
	r := &recorder{}
	s := newTestStrategy(r)

	res, err := TryInOrder(context.Background(), s, "test", []string{"A", "B"},
		func(_ context.Context, c string) (int, error) {
			r.events = append(r.events, "try "+c)
			return 1, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 1, res)
	assert.Equal(t, []string{"try A"}, r.events)
}

func TestTryInOrderAllFail(t *testing.T) {
	r := &recorder{}
	s := newTestStrategy(r)
	last := errors.New("C unavailable")

	_, err := TryInOrder(context.Background(), s, "test", []string{"A", "B", "C"},
		func(_ context.Context, c string) (string, error) {
			r.events = append(r.events, "try "+c)
			if c == "C" {
				return "", last
			}
			return "", errors.New("other")
		})

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, 3, ferr.Attempts)
	assert.Equal(t, last, ferr.Last)
	assert.True(t, errors.Is(err, last))
	assert.Equal(t, last, errors.Cause(err))
	assert.Equal(t, []string{"try A", "wait 2s", "try B", "wait 2s", "try C"}, r.events, "no wait after the last candidate")
}

func TestTryInOrderStopsOnCancelledWait(t *testing.T) {
	s := NewStrategy(time.Hour, nil, log.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := TryInOrder(ctx, s, "test", []string{"A", "B"},
		func(_ context.Context, _ string) (string, error) {
			calls++
			cancel()
			return "", errors.New("down")
		})

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, 1, ferr.Attempts)
	assert.Equal(t, 1, calls)
}

func TestTryInOrderNoCandidates(t *testing.T) {
	s := NewStrategy(0, nil, log.NewNopLogger())
	_, err := TryInOrder(context.Background(), s, "test", nil,
		func(_ context.Context, _ string) (string, error) { return "x", nil })

	var ferr *Error
	assert.True(t, errors.As(err, &ferr))
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sleep(ctx, time.Hour))
}
