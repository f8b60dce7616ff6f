// Package notifier publishes an event for every job that reaches a terminal
// status.
package notifier

import (
	"context"
	"flag"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ValerySidorin/ytgrab/pkg/job"
	"github.com/ValerySidorin/ytgrab/pkg/queue"
	"github.com/ValerySidorin/ytgrab/pkg/queue/message"
)

const DefaultSubject = "ytgrab.jobs"

type Config struct {
	Subject    string       `yaml:"subject"`
	BufferSize int          `yaml:"buffer_size"`
	Queue      queue.Config `yaml:"queue"`
}

func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Subject, prefix+"subject", DefaultSubject, "Subject job events are published to.")
	f.IntVar(&c.BufferSize, prefix+"buffer-size", 128, "Events waiting to be published before new ones are dropped.")
	c.Queue.RegisterFlags(prefix+"queue.", f)
}

type Notifier struct {
	services.Service

	cfg Config
	log log.Logger

	pub    queue.Publisher
	events chan *message.Message

	published *prometheus.CounterVec
}

func New(cfg Config, reg prometheus.Registerer, logger log.Logger) (*Notifier, error) {
	pub, err := queue.NewPublisher(cfg.Queue, logger)
	if err != nil {
		return nil, errors.Wrap(err, "notifier connect to queue")
	}

	return NewWithPublisher(cfg, pub, reg, logger), nil
}

func NewWithPublisher(cfg Config, pub queue.Publisher, reg prometheus.Registerer, logger log.Logger) *Notifier {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	n := &Notifier{
		cfg:    cfg,
		log:    log.With(logger, "component", "notifier"),
		pub:    pub,
		events: make(chan *message.Message, cfg.BufferSize),
		published: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_events_total",
			Help: "Job events by publishing outcome.",
		}, []string{"outcome"}),
	}

	n.Service = services.NewBasicService(nil, n.run, n.stop)

	return n
}

// Notify enqueues an event for a terminal job. It never blocks; events that
// do not fit into the buffer are dropped.
func (n *Notifier) Notify(j job.Job) {
	if !j.Status.IsTerminal() {
		return
	}

	select {
	case n.events <- message.FromJob(j):
	default:
		n.published.WithLabelValues("dropped").Inc()
		_ = level.Warn(n.log).Log("msg", "event buffer full, dropping event", "job_id", j.ID)
	}
}

func (n *Notifier) run(ctx context.Context) error {
	for {
		select {
		case msg := <-n.events:
			n.publish(msg)
		case <-ctx.Done():
			n.drain()
			return nil
		}
	}
}

func (n *Notifier) drain() {
	for {
		select {
		case msg := <-n.events:
			n.publish(msg)
		default:
			return
		}
	}
}

func (n *Notifier) publish(msg *message.Message) {
	if err := n.pub.Pub(n.cfg.Subject, msg); err != nil {
		n.published.WithLabelValues("failed").Inc()
		_ = level.Error(n.log).Log("msg", "publish job event", "job_id", msg.JobID, "err", err)
		return
	}

	n.published.WithLabelValues("sent").Inc()
	_ = level.Debug(n.log).Log("msg", "sent message", "message", msg.String(), "subject", n.cfg.Subject)
}

func (n *Notifier) stop(_ error) error {
	if err := n.pub.Close(); err != nil {
		_ = level.Warn(n.log).Log("msg", "close publisher", "err", err)
	}
	return nil
}
