package nats

import (
	"flag"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/ValerySidorin/ytgrab/pkg/queue/message"
)

type Config struct {
	Url           string        `yaml:"url"`
	Name          string        `yaml:"name"`
	ConnectWait   time.Duration `yaml:"connect_wait"`
	MaxReconnects int           `yaml:"max_reconnects"`
}

func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Url, prefix+"nats.url", nats.DefaultURL, "NATS server URL.")
	f.StringVar(&c.Name, prefix+"nats.name", "ytgrab", "Connection name reported to the NATS server.")
	f.DurationVar(&c.ConnectWait, prefix+"nats.connect-wait", 2*time.Second, "Timeout of the initial connection.")
	f.IntVar(&c.MaxReconnects, prefix+"nats.max-reconnects", nats.DefaultMaxReconnect, "Reconnect attempts before giving up.")
}

type NatsClient struct {
	conn *nats.Conn
	log  log.Logger
}

func NewNatsClient(cfg Config, logger log.Logger) (*NatsClient, error) {
	logger = log.With(logger, "component", "nats")

	conn, err := nats.Connect(cfg.Url,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				_ = level.Warn(logger).Log("msg", "nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			_ = level.Info(logger).Log("msg", "nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "initialize nats connection")
	}

	return &NatsClient{
		conn: conn,
		log:  logger,
	}, nil
}

func (n *NatsClient) Pub(subject string, msg *message.Message) error {
	b, err := msg.Bytes()
	if err != nil {
		return errors.Wrap(err, "nats publish")
	}

	if err := n.conn.Publish(subject, b); err != nil {
		return errors.Wrap(err, "nats publish")
	}

	return nil
}

func (n *NatsClient) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return errors.Wrap(err, "nats drain")
	}
	return nil
}
