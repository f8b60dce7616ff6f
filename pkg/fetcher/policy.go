package fetcher

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ValerySidorin/ytgrab/pkg/job"
)

type durationLimit struct {
	Fetcher
	max time.Duration
}

// WithMaxDuration rejects metadata whose duration exceeds max. A non-positive
// max disables the check.
func WithMaxDuration(next Fetcher, max time.Duration) Fetcher {
	if max <= 0 {
		return next
	}
	return &durationLimit{Fetcher: next, max: max}
}

func (d *durationLimit) FetchMetadata(ctx context.Context, url string) (*job.Metadata, error) {
	md, err := d.Fetcher.FetchMetadata(ctx, url)
	if err != nil {
		return nil, err
	}

	if time.Duration(md.Duration)*time.Second > d.max {
		return nil, errors.Wrapf(job.ErrDurationExceeded,
			"video is %ds long, maximum is %ds", md.Duration, int(d.max.Seconds()))
	}
	return md, nil
}
