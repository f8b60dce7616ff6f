package downloader

import (
	gklog "github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ValerySidorin/ytgrab/pkg/fetcher"
	"github.com/ValerySidorin/ytgrab/pkg/fetcher/fallback"
	"github.com/ValerySidorin/ytgrab/pkg/fetcher/offline"
	"github.com/ValerySidorin/ytgrab/pkg/fetcher/youtube"
)

// NewFetcher picks the engine once: synthetic in test mode, youtube
// otherwise. Both get the same fallback and duration policy.
func NewFetcher(cfg Config, reg prometheus.Registerer, log gklog.Logger) fetcher.Fetcher {
	var f fetcher.Fetcher
	if cfg.Fetcher.TestMode {
		f = offline.New(log)
	} else {
		f = youtube.New(cfg.Fetcher, log)
	}

	f = fallback.NewFetcher(f, cfg.Fallback, reg, log)
	return fetcher.WithMaxDuration(f, cfg.Fetcher.MaxDuration)
}
