package downloader

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"sync"

	gklog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/ValerySidorin/ytgrab/pkg/fetcher"
	"github.com/ValerySidorin/ytgrab/pkg/fetcher/fallback"
	"github.com/ValerySidorin/ytgrab/pkg/job"
	"github.com/ValerySidorin/ytgrab/pkg/job/store"
	"github.com/ValerySidorin/ytgrab/pkg/objstore"
	"github.com/ValerySidorin/ytgrab/pkg/validator"
)

var ErrNotRunning = errors.New("downloader is not running")

type Config struct {
	Dir           string `yaml:"dir"`
	MaxConcurrent int    `yaml:"max_concurrent"`

	Fetcher  fetcher.Config  `yaml:"fetcher"`
	Fallback fallback.Config `yaml:"fallback"`
	ObjStore objstore.Config `yaml:"obj_store"`
}

func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Dir, prefix+"dir", "uploads", "Directory downloaded files are written to.")
	f.IntVar(&c.MaxConcurrent, prefix+"max-concurrent", 3, "Downloads transferring at the same time. Others wait as pending.")

	c.Fetcher.RegisterFlags(prefix+"fetcher.", f)
	c.Fallback.RegisterFlags(prefix+"fallback.", f)
	c.ObjStore.RegisterFlags(prefix+"obj-store.", f)
}

// Notifier is told about every job that reached a terminal status.
type Notifier interface {
	Notify(j job.Job)
}

// Downloader creates jobs and owns their background transfers. It is the only
// writer of the job store apart from the janitor.
type Downloader struct {
	services.Service

	cfg Config
	log gklog.Logger

	store    *store.Store
	fetcher  fetcher.Fetcher
	archive  objstore.Writer
	notifier Notifier

	sem      *semaphore.Weighted
	inFlight *atomic.Int32
	wg       sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	cancels map[string]context.CancelFunc

	runCtx    context.Context
	runCancel context.CancelFunc

	jobsCreated  prometheus.Counter
	jobsFinished *prometheus.CounterVec
}

func New(cfg Config, f fetcher.Fetcher, st *store.Store, n Notifier, reg prometheus.Registerer, log gklog.Logger) *Downloader {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	d := &Downloader{
		cfg:      cfg,
		log:      gklog.With(log, "service", "downloader"),
		store:    st,
		fetcher:  f,
		notifier: n,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		inFlight: atomic.NewInt32(0),
		cancels:  make(map[string]context.CancelFunc),
	}

	d.jobsCreated = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "jobs_created_total",
		Help: "Download jobs accepted.",
	})
	d.jobsFinished = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_finished_total",
		Help: "Download jobs that reached a terminal status.",
	}, []string{"status"})
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "downloads_in_flight",
		Help: "Transfers currently running.",
	}, func() float64 { return float64(d.inFlight.Load()) })

	d.Service = services.NewIdleService(d.starting, d.stopping)

	return d
}

func (d *Downloader) starting(ctx context.Context) error {
	if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
		return errors.Wrap(err, "downloader create download dir")
	}

	if d.archive == nil && d.cfg.ObjStore.Enabled() {
		w, err := objstore.NewWriter(ctx, d.cfg.ObjStore)
		if err != nil {
			return errors.Wrap(err, "downloader connect to obj store as writer")
		}
		d.archive = w
	}

	d.runCtx, d.runCancel = context.WithCancel(context.Background())

	_ = level.Info(d.log).Log("msg", "downloader started", "dir", d.cfg.Dir,
		"test_mode", d.cfg.Fetcher.TestMode, "max_concurrent", d.cfg.MaxConcurrent)
	return nil
}

// stopping aborts every transfer and waits until each job has been resolved.
func (d *Downloader) stopping(_ error) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.runCancel()
	d.wg.Wait()
	return nil
}

// Metadata fetches metadata for url without creating a job.
func (d *Downloader) Metadata(ctx context.Context, url string) (*job.Metadata, error) {
	if !validator.IsValidURL(url) {
		return nil, errors.Wrapf(job.ErrInvalidInput, "%q", url)
	}

	md, err := d.fetcher.FetchMetadata(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "fetch metadata")
	}
	return md, nil
}

// Start validates url and fetches its metadata before a job exists. Only then
// the job is created and its transfer is scheduled in the background.
func (d *Downloader) Start(ctx context.Context, url string) (job.Job, error) {
	if d.State() != services.Running {
		return job.Job{}, ErrNotRunning
	}

	md, err := d.Metadata(ctx, url)
	if err != nil {
		return job.Job{}, err
	}

	j := job.New(uuid.NewString(), url, md)
	if err := d.schedule(j); err != nil {
		return job.Job{}, err
	}
	d.jobsCreated.Inc()

	_ = level.Info(d.log).Log("msg", "job created", "job_id", j.ID, "url", url, "title", md.Title)
	return j.Clone(), nil
}

func (d *Downloader) Get(id string) (job.Job, error) {
	return d.store.Get(id)
}

func (d *Downloader) List() []job.Job {
	return d.store.List()
}

// Cancel marks a live job as failed and aborts its transfer. Cancelling a
// terminal job fails with job.ErrInvalidTransition.
func (d *Downloader) Cancel(id string) (job.Job, error) {
	j, err := d.store.Update(id, job.FailedPatch(job.CancelledByUser))
	if err != nil {
		return j, err
	}

	d.abort(id)
	d.jobsFinished.WithLabelValues(string(job.Failed)).Inc()
	_ = level.Info(d.log).Log("msg", "job cancelled", "job_id", id)
	d.notify(j)

	return j, nil
}

func (d *Downloader) InFlight() int {
	return int(d.inFlight.Load())
}

func (d *Downloader) TestMode() bool {
	return d.cfg.Fetcher.TestMode
}

func (d *Downloader) Dir() string {
	return d.cfg.Dir
}

// schedule creates j and starts its transfer. It holds the same lock as
// stopping, so nothing is scheduled once stopping has begun.
func (d *Downloader) schedule(j *job.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrNotRunning
	}
	if err := d.store.Create(j); err != nil {
		return errors.Wrap(err, "downloader create job")
	}

	ctx, cancel := context.WithCancel(d.runCtx)
	d.cancels[j.ID] = cancel

	d.wg.Add(1)
	go d.run(ctx, j.Clone())

	return nil
}

func (d *Downloader) run(ctx context.Context, j job.Job) {
	defer d.wg.Done()
	defer d.abort(j.ID)

	log := gklog.With(d.log, "job_id", j.ID)

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.finish(j.ID, job.FailedPatch("download aborted before start: "+err.Error()))
		return
	}
	defer d.sem.Release(1)

	d.inFlight.Inc()
	defer d.inFlight.Dec()

	if _, err := d.store.Update(j.ID, job.StatusPatch(job.InProgress)); err != nil {
		_ = level.Debug(log).Log("msg", "job left pending before transfer", "err", err)
		return
	}

	path, err := d.fetcher.FetchMedia(ctx, j.URL, d.cfg.Dir, d.progressHook(j.ID, log))
	if err != nil {
		_ = level.Error(log).Log("msg", "download failed", "err", err)
		d.finish(j.ID, job.FailedPatch(err.Error()))
		return
	}

	finished, ok := d.finish(j.ID, job.CompletedPatch(path))
	if ok && d.archive != nil {
		d.archiveFile(ctx, finished, log)
	}
}

// progressHook is the only path from a transfer into the store.
func (d *Downloader) progressHook(id string, log gklog.Logger) fetcher.ProgressFunc {
	return func(p fetcher.Progress) {
		if _, err := d.store.Update(id, job.ProgressPatch(p.Percent)); err != nil {
			_ = level.Debug(log).Log("msg", "progress update rejected", "progress", p.Percent, "err", err)
		}
	}
}

// finish applies a terminal patch. A job that is already terminal, typically
// cancelled by the user, keeps its status and the late result is dropped.
func (d *Downloader) finish(id string, p job.Patch) (job.Job, bool) {
	j, err := d.store.Update(id, p)
	if err != nil {
		if errors.Is(err, job.ErrInvalidTransition) {
			_ = level.Warn(d.log).Log("msg", "dropping result of finished job", "job_id", id, "status", j.Status, "err", err)
		} else {
			_ = level.Error(d.log).Log("msg", "record job result", "job_id", id, "err", err)
		}
		return j, false
	}

	d.jobsFinished.WithLabelValues(string(j.Status)).Inc()
	_ = level.Info(d.log).Log("msg", "job finished", "job_id", id, "status", j.Status, "file_path", j.FilePath)
	d.notify(j)

	return j, true
}

func (d *Downloader) archiveFile(ctx context.Context, j job.Job, log gklog.Logger) {
	objName := j.ID + "/" + filepath.Base(j.FilePath)
	if err := objstore.StoreFile(ctx, d.archive, objName, j.FilePath); err != nil {
		_ = level.Error(log).Log("msg", "archive downloaded file", "err", err)
		return
	}
	_ = level.Debug(log).Log("msg", "archived downloaded file", "object", objName)
}

func (d *Downloader) notify(j job.Job) {
	if d.notifier != nil {
		d.notifier.Notify(j)
	}
}

func (d *Downloader) abort(id string) {
	d.mu.Lock()
	cancel, ok := d.cancels[id]
	delete(d.cancels, id)
	d.mu.Unlock()

	if ok {
		cancel()
	}
}
