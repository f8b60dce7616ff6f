package queue

import (
	"flag"

	"github.com/go-kit/log"
	"github.com/pkg/errors"

	"github.com/ValerySidorin/ytgrab/pkg/queue/message"
	"github.com/ValerySidorin/ytgrab/pkg/queue/nats"
)

const TypeNats = "nats"

type Config struct {
	Type string      `yaml:"type"`
	Nats nats.Config `yaml:"nats"`
}

func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Type, prefix+"type", "", `Queue used to publish job events ("nats"). Empty disables publishing.`)
	c.Nats.RegisterFlags(prefix, f)
}

func (c *Config) Enabled() bool {
	return c.Type != ""
}

type Publisher interface {
	Pub(subject string, msg *message.Message) error
	Close() error
}

func NewPublisher(cfg Config, log log.Logger) (Publisher, error) {
	switch cfg.Type {
	case TypeNats:
		return nats.NewNatsClient(cfg.Nats, log)
	default:
		return nil, errors.Errorf("invalid queue type %q", cfg.Type)
	}
}
