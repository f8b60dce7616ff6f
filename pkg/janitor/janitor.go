// Package janitor evicts old finished jobs from the store.
package janitor

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"

	"github.com/ValerySidorin/ytgrab/pkg/job"
	"github.com/ValerySidorin/ytgrab/pkg/job/store"
)

type Config struct {
	Interval    time.Duration `yaml:"interval"`
	Retention   time.Duration `yaml:"retention"`
	RemoveFiles bool          `yaml:"remove_files"`
}

func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	f.DurationVar(&c.Interval, prefix+"interval", 5*time.Minute, "How often finished jobs are swept.")
	f.DurationVar(&c.Retention, prefix+"retention", 0, "How long finished jobs are kept. 0 keeps them for the process lifetime.")
	f.BoolVar(&c.RemoveFiles, prefix+"remove-files", false, "Also delete the downloaded file of an evicted job.")
}

func (c *Config) Enabled() bool {
	return c.Retention > 0
}

type Janitor struct {
	services.Service

	cfg   Config
	log   log.Logger
	store *store.Store
	now   func() time.Time

	evicted prometheus.Counter
}

func New(cfg Config, st *store.Store, reg prometheus.Registerer, logger log.Logger) *Janitor {
	j := &Janitor{
		cfg:   cfg,
		log:   log.With(logger, "service", "janitor"),
		store: st,
		now:   time.Now,
		evicted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "jobs_evicted_total",
			Help: "Finished jobs removed by the janitor.",
		}),
	}

	j.Service = services.NewTimerService(cfg.Interval, nil, j.iteration, nil)

	return j
}

func (j *Janitor) iteration(_ context.Context) error {
	n := j.Sweep()
	if n > 0 {
		_ = level.Info(j.log).Log("msg", "evicted finished jobs", "count", n)
	}
	return nil
}

// Sweep removes finished jobs last updated before the retention window and
// returns how many were removed.
func (j *Janitor) Sweep() int {
	if !j.cfg.Enabled() {
		return 0
	}

	cutoff := j.now().Add(-j.cfg.Retention)
	expired := lo.Filter(j.store.List(), func(item job.Job, _ int) bool {
		return item.Status.IsTerminal() && item.UpdatedAt.Before(cutoff)
	})

	removed := 0
	for _, item := range expired {
		if err := j.store.Delete(item.ID); err != nil {
			_ = level.Warn(j.log).Log("msg", "evict job", "job_id", item.ID, "err", err)
			continue
		}
		removed++
		j.evicted.Inc()

		if j.cfg.RemoveFiles && item.FilePath != "" {
			if err := os.Remove(item.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				_ = level.Warn(j.log).Log("msg", "remove evicted job file", "job_id", item.ID, "err", err)
			}
		}
	}

	return removed
}
