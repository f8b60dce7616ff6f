// Package api exposes the downloader over HTTP.
package api

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/weaveworks/common/logging"
	"github.com/weaveworks/common/middleware"

	"github.com/ValerySidorin/ytgrab/pkg/job"
)

const (
	ServiceName = "ytgrab"

	maxBodySize  = 1 << 20
	probeTimeout = 10 * time.Second
)

type Config struct {
	ListenAddress   string                 `yaml:"listen_address"`
	AllowedOrigins  flagext.StringSliceCSV `yaml:"allowed_origins"`
	ReadTimeout     time.Duration          `yaml:"read_timeout"`
	WriteTimeout    time.Duration          `yaml:"write_timeout"`
	MetadataTimeout time.Duration          `yaml:"metadata_timeout"`
	ShutdownTimeout time.Duration          `yaml:"shutdown_timeout"`
}

func (c *Config) Validate() error {
	if c.MetadataTimeout < 0 {
		return errors.New("metadata timeout must not be negative")
	}
	if c.WriteTimeout > 0 && (c.MetadataTimeout == 0 || c.MetadataTimeout >= c.WriteTimeout) {
		return errors.Errorf("metadata timeout %s must be set below write timeout %s", c.MetadataTimeout, c.WriteTimeout)
	}
	return nil
}

func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	c.AllowedOrigins = flagext.StringSliceCSV{"http://localhost:3000"}

	f.StringVar(&c.ListenAddress, prefix+"listen-address", ":8000", "Address the HTTP server listens on.")
	f.Var(&c.AllowedOrigins, prefix+"allowed-origins", "Comma separated origins allowed by CORS.")
	f.DurationVar(&c.ReadTimeout, prefix+"read-timeout", 30*time.Second, "Read timeout of HTTP requests.")
	f.DurationVar(&c.WriteTimeout, prefix+"write-timeout", 2*time.Minute, "Write timeout of HTTP responses.")
	f.DurationVar(&c.MetadataTimeout, prefix+"metadata-timeout", 90*time.Second, "Deadline of the metadata fetch done while handling POST /download and POST /metadata. Must be below the write timeout when one is set.")
	f.DurationVar(&c.ShutdownTimeout, prefix+"shutdown-timeout", 10*time.Second, "Time given to in-flight requests on shutdown.")
}

// Downloader is what the HTTP surface needs from the orchestrator.
type Downloader interface {
	Start(ctx context.Context, url string) (job.Job, error)
	Metadata(ctx context.Context, url string) (*job.Metadata, error)
	Get(id string) (job.Job, error)
	List() []job.Job
	Cancel(id string) (job.Job, error)
	InFlight() int
	TestMode() bool
	Dir() string
}

type Prober interface {
	Probe(ctx context.Context) map[string]bool
}

type API struct {
	cfg    Config
	d      Downloader
	prober Prober
	log    log.Logger

	router  *mux.Router
	handler http.Handler

	requests *prometheus.CounterVec
}

// New builds the router. prober may be nil when the network is never probed.
func New(cfg Config, d Downloader, prober Prober, reg prometheus.Registerer, gatherer prometheus.Gatherer, requestLog logging.Interface, logger log.Logger) *API {
	a := &API{
		cfg:    cfg,
		d:      d,
		prober: prober,
		log:    log.With(logger, "component", "api"),
		router: mux.NewRouter(),
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
	}

	a.router.HandleFunc("/download", a.startDownload).Methods(http.MethodPost)
	a.router.HandleFunc("/download/{jobId}/status", a.downloadStatus).Methods(http.MethodGet)
	a.router.HandleFunc("/metadata", a.metadata).Methods(http.MethodPost)
	a.router.HandleFunc("/jobs", a.listJobs).Methods(http.MethodGet)
	a.router.HandleFunc("/jobs/{jobId}", a.cancelJob).Methods(http.MethodDelete)
	a.router.HandleFunc("/test-mode", a.testMode).Methods(http.MethodGet)
	a.router.HandleFunc("/health", a.health).Methods(http.MethodGet)
	a.router.HandleFunc("/health/network", a.networkHealth).Methods(http.MethodGet)
	if gatherer != nil {
		a.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	a.router.Use(a.instrument)

	var h http.Handler = a.router
	if requestLog != nil {
		h = middleware.Log{Log: requestLog}.Wrap(h)
	}
	a.handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	}).Handler(h)

	return a
}

func (a *API) Handler() http.Handler {
	return a.handler
}

func (a *API) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		m := httpsnoop.CaptureMetrics(next, w, r)
		a.requests.WithLabelValues(route, r.Method, strconv.Itoa(m.Code)).Inc()
	})
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (a *API) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = level.Warn(a.log).Log("msg", "write response", "err", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, code int, detail string) {
	a.writeJSON(w, code, errorResponse{Detail: detail})
}

type urlRequest struct {
	URL string `json:"url"`
}

// metadataContext bounds the synchronous metadata fetch so its outcome is
// written before the server's write timeout.
func (a *API) metadataContext(r *http.Request) (context.Context, context.CancelFunc) {
	if a.cfg.MetadataTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), a.cfg.MetadataTimeout)
}

func decodeURLRequest(w http.ResponseWriter, r *http.Request) (urlRequest, bool) {
	var req urlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil || req.URL == "" {
		return req, false
	}
	return req, true
}
