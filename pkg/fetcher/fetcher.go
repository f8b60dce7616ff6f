// Package fetcher defines the contract between the orchestrator and the media
// extraction engines.
package fetcher

import (
	"context"
	"flag"
	"time"

	"github.com/ValerySidorin/ytgrab/pkg/job"
)

// Progress is one transfer report. FilePath is only set by the final report,
// which always carries Percent == 100.
type Progress struct {
	Percent  float64
	FilePath string
}

type ProgressFunc func(Progress)

type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, url string) (*job.Metadata, error)
}

type MediaFetcher interface {
	FetchMedia(ctx context.Context, url, dir string, onProgress ProgressFunc) (string, error)
}

type Fetcher interface {
	MetadataFetcher
	MediaFetcher
}

type Config struct {
	TestMode     bool          `yaml:"test_mode"`
	MaxDuration  time.Duration `yaml:"max_duration"`
	MaxFileSize  int64         `yaml:"max_file_size"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryMax     int           `yaml:"retry_max"`
	BufferSize   int           `yaml:"buffer_size"`
	MaxHeight    int           `yaml:"max_height"`
	StallTimeout time.Duration `yaml:"stall_timeout"`
}

func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	f.BoolVar(&c.TestMode, prefix+"test-mode", false, "Serve synthetic metadata and placeholder files without network access.")
	f.DurationVar(&c.MaxDuration, prefix+"max-duration", time.Hour, "Longest media accepted for download.")
	f.Int64Var(&c.MaxFileSize, prefix+"max-file-size", 100*1024*1024, "Largest media file accepted, in bytes.")
	f.DurationVar(&c.Timeout, prefix+"timeout", 10*time.Minute, "Overall timeout of a single media transfer.")
	f.IntVar(&c.RetryMax, prefix+"retry-max", 3, "Retries of extractor HTTP requests.")
	f.IntVar(&c.BufferSize, prefix+"buffer-size", 32*1024, "Transfer buffer size in bytes.")
	f.IntVar(&c.MaxHeight, prefix+"max-height", 720, "Highest video resolution selected.")
	f.DurationVar(&c.StallTimeout, prefix+"stall-timeout", 30*time.Second, "Abort a transfer that makes no progress for this long.")
}
