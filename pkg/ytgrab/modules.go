package ytgrab

import (
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/services"

	"github.com/ValerySidorin/ytgrab/pkg/api"
	"github.com/ValerySidorin/ytgrab/pkg/downloader"
	"github.com/ValerySidorin/ytgrab/pkg/fetcher/youtube"
	"github.com/ValerySidorin/ytgrab/pkg/janitor"
	"github.com/ValerySidorin/ytgrab/pkg/job/store"
	"github.com/ValerySidorin/ytgrab/pkg/notifier"
	util_log "github.com/ValerySidorin/ytgrab/pkg/util/log"
)

const (
	Store      = "store"
	Notifier   = "notifier"
	Downloader = "downloader"
	Janitor    = "janitor"
	Server     = "server"
	All        = "all"
)

func (y *YTGrab) initStore() (services.Service, error) {
	y.Store = store.New()
	return nil, nil
}

func (y *YTGrab) initNotifier() (services.Service, error) {
	if !y.Cfg.Notifier.Queue.Enabled() {
		return nil, nil
	}

	var err error
	y.Notifier, err = notifier.New(y.Cfg.Notifier, y.Registerer, util_log.Logger)
	if err != nil {
		return nil, err
	}

	return y.Notifier, nil
}

func (y *YTGrab) initDownloader() (services.Service, error) {
	var n downloader.Notifier
	if y.Notifier != nil {
		n = y.Notifier
	}

	f := downloader.NewFetcher(y.Cfg.Downloader, y.Registerer, util_log.Logger)
	y.Downloader = downloader.New(y.Cfg.Downloader, f, y.Store, n, y.Registerer, util_log.Logger)

	return y.Downloader, nil
}

func (y *YTGrab) initJanitor() (services.Service, error) {
	if !y.Cfg.Janitor.Enabled() {
		return nil, nil
	}

	y.Janitor = janitor.New(y.Cfg.Janitor, y.Store, y.Registerer, util_log.Logger)
	return y.Janitor, nil
}

func (y *YTGrab) initServer() (services.Service, error) {
	var prober api.Prober
	if !y.Cfg.Downloader.Fetcher.TestMode {
		prober = youtube.NewProber(youtube.ProbeDomains, util_log.Logger)
	}

	a := api.New(y.Cfg.Server, y.Downloader, prober, y.Registerer, y.Registry, y.Cfg.Log.Log, util_log.Logger)
	y.Server = api.NewServer(y.Cfg.Server, a.Handler(), util_log.Logger)

	return y.Server, nil
}

func (y *YTGrab) setupModuleManager() error {
	mm := modules.NewManager(util_log.Logger)

	mm.RegisterModule(Store, y.initStore, modules.UserInvisibleModule)
	mm.RegisterModule(Notifier, y.initNotifier, modules.UserInvisibleTargetableModule)
	mm.RegisterModule(Downloader, y.initDownloader)
	mm.RegisterModule(Janitor, y.initJanitor)
	mm.RegisterModule(Server, y.initServer)
	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		Notifier:   {},
		Downloader: {Store, Notifier},
		Janitor:    {Store},
		Server:     {Downloader},
		All:        {Server, Janitor},
	}
	for mod, targets := range deps {
		if len(targets) == 0 {
			continue
		}
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	y.ModuleManager = mm
	return nil
}
