package fallback

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/ValerySidorin/ytgrab/pkg/fetcher"
	"github.com/ValerySidorin/ytgrab/pkg/job"
	"github.com/ValerySidorin/ytgrab/pkg/validator"
)

// Fetcher runs both fetch operations against the requested URL first and then
// against the configured alternate sources.
type Fetcher struct {
	next     fetcher.Fetcher
	strategy *Strategy
	sources  []string
}

func NewFetcher(next fetcher.Fetcher, cfg Config, reg prometheus.Registerer, logger log.Logger) *Fetcher {
	sources := make([]string, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		u, ok := sourceURL(s)
		if !ok {
			_ = level.Warn(logger).Log("msg", "ignoring invalid fallback source", "source", s)
			continue
		}
		sources = append(sources, u)
	}

	return &Fetcher{
		next:     next,
		strategy: NewStrategy(cfg.Delay, reg, logger),
		sources:  sources,
	}
}

func (f *Fetcher) FetchMetadata(ctx context.Context, url string) (*job.Metadata, error) {
	return TryInOrder(ctx, f.strategy, "metadata", f.candidates(url),
		func(ctx context.Context, candidate string) (*job.Metadata, error) {
			return f.next.FetchMetadata(ctx, candidate)
		})
}

func (f *Fetcher) FetchMedia(ctx context.Context, url, dir string, onProgress fetcher.ProgressFunc) (string, error) {
	return TryInOrder(ctx, f.strategy, "media", f.candidates(url),
		func(ctx context.Context, candidate string) (string, error) {
			return f.next.FetchMedia(ctx, candidate, dir, onProgress)
		})
}

func (f *Fetcher) candidates(url string) []string {
	return lo.Uniq(append([]string{url}, f.sources...))
}

// sourceURL accepts either a full video URL or a bare video id.
func sourceURL(s string) (string, bool) {
	if validator.IsValidURL(s) {
		return s, true
	}
	if validator.IsValidVideoID(s) {
		return fmt.Sprintf(validator.WatchURLTemplate, s), true
	}
	return "", false
}
