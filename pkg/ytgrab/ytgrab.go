package ytgrab

import (
	"context"
	"flag"

	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/lo"
	"github.com/weaveworks/common/signals"

	"github.com/ValerySidorin/ytgrab/pkg/api"
	"github.com/ValerySidorin/ytgrab/pkg/downloader"
	"github.com/ValerySidorin/ytgrab/pkg/janitor"
	"github.com/ValerySidorin/ytgrab/pkg/job/store"
	"github.com/ValerySidorin/ytgrab/pkg/notifier"
	util_log "github.com/ValerySidorin/ytgrab/pkg/util/log"
)

const metricsPrefix = "ytgrab_"

type YTGrab struct {
	Cfg Config

	Registry   *prometheus.Registry
	Registerer prometheus.Registerer

	Store      *store.Store
	Notifier   *notifier.Notifier
	Downloader *downloader.Downloader
	Janitor    *janitor.Janitor
	Server     *api.Server

	// set during initialization
	ServiceMap    map[string]services.Service
	ModuleManager *modules.Manager
}

type Config struct {
	Target flagext.StringSliceCSV `yaml:"target"`

	Log        util_log.Config   `yaml:"log"`
	Server     api.Config        `yaml:"server"`
	Downloader downloader.Config `yaml:"downloader"`
	Notifier   notifier.Config   `yaml:"notifier"`
	Janitor    janitor.Config    `yaml:"janitor"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.Target = flagext.StringSliceCSV{All}
	f.Var(&c.Target, "target", "Comma separated modules to run.")

	c.Log.RegisterFlags(f)
	c.Server.RegisterFlags("server.", f)
	c.Downloader.RegisterFlags("downloader.", f)
	c.Notifier.RegisterFlags("notifier.", f)
	c.Janitor.RegisterFlags("janitor.", f)
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if c.Downloader.Dir == "" {
		return errors.New("download dir must not be empty")
	}
	if c.Downloader.MaxConcurrent <= 0 {
		return errors.New("max concurrent downloads must be positive")
	}
	if c.Downloader.Fetcher.Timeout < 0 {
		return errors.New("fetch timeout must not be negative")
	}
	if c.Janitor.Enabled() && c.Janitor.Interval <= 0 {
		return errors.New("janitor interval must be positive when retention is set")
	}
	return nil
}

func New(cfg Config) (*YTGrab, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	y := &YTGrab{
		Cfg:        cfg,
		Registry:   reg,
		Registerer: prometheus.WrapRegistererWithPrefix(metricsPrefix, reg),
	}

	if err := y.setupModuleManager(); err != nil {
		return nil, err
	}

	return y, nil
}

// Run starts the target modules and blocks until they stop, either on a
// signal or because one of them failed.
func (y *YTGrab) Run() error {
	serviceMap, err := y.ModuleManager.InitModuleServices(y.Cfg.Target...)
	if err != nil {
		return errors.Wrap(err, "init module services")
	}
	y.ServiceMap = serviceMap

	sm, err := services.NewManager(lo.Values(serviceMap)...)
	if err != nil {
		return errors.Wrap(err, "init service manager")
	}

	healthy := func() { _ = level.Info(util_log.Logger).Log("msg", "ytgrab started", "targets", y.Cfg.Target.String()) }
	stopped := func() { _ = level.Info(util_log.Logger).Log("msg", "ytgrab stopped") }
	serviceFailed := func(service services.Service) {
		sm.StopAsync()

		for m, s := range serviceMap {
			if s == service {
				_ = level.Error(util_log.Logger).Log("msg", "module failed", "module", m, "err", service.FailureCase())
				return
			}
		}
		_ = level.Error(util_log.Logger).Log("msg", "module failed", "module", "unknown", "err", service.FailureCase())
	}
	sm.AddListener(services.NewManagerListener(healthy, stopped, serviceFailed))

	handler := signals.NewHandler(y.Cfg.Log.Log)
	go func() {
		handler.Loop()
		sm.StopAsync()
	}()

	if err := sm.StartAsync(context.Background()); err != nil {
		return errors.Wrap(err, "start services")
	}
	if err := sm.AwaitStopped(context.Background()); err != nil {
		return err
	}
	handler.Stop()

	if failed := sm.ServicesByState()[services.Failed]; len(failed) > 0 {
		return errors.Wrap(failed[0].FailureCase(), "module failed")
	}
	return nil
}
