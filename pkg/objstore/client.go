package objstore

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ValerySidorin/ytgrab/pkg/objstore/minio"
)

const (
	Bucket = "ytgrab"

	StoreMinio = "minio"
)

type Config struct {
	Store  string       `yaml:"store"`
	Bucket string       `yaml:"bucket"`
	Minio  minio.Config `yaml:"minio"`
}

func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Store, prefix+"store", "", `Object storage completed files are archived to ("minio"). Empty disables archival.`)
	f.StringVar(&c.Bucket, prefix+"bucket", Bucket, "Bucket completed files are archived to.")
	c.Minio.RegisterFlags(prefix+"minio.", f)
}

func (c *Config) Enabled() bool {
	return c.Store != ""
}

type Writer interface {
	Store(ctx context.Context, objName string, r io.Reader) error
}

func NewWriter(ctx context.Context, cfg Config) (Writer, error) {
	switch cfg.Store {
	case StoreMinio:
		return minio.NewWriter(ctx, cfg.Minio, cfg.Bucket)
	}

	return nil, errors.Errorf("invalid store %q for writer", cfg.Store)
}

// StoreFile uploads the file at path under objName.
func StoreFile(ctx context.Context, w Writer, objName, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "store file os.Open")
	}
	defer f.Close()

	if err := w.Store(ctx, objName, f); err != nil {
		return errors.Wrapf(err, "store file %s", filepath.Base(path))
	}
	return nil
}
