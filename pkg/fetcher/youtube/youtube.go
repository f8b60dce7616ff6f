// Package youtube implements the fetchers on top of the kkdai/youtube
// extractor and a grab transfer.
package youtube

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"

	"github.com/ValerySidorin/ytgrab/pkg/fetcher"
	"github.com/ValerySidorin/ytgrab/pkg/job"
	util_log "github.com/ValerySidorin/ytgrab/pkg/util/log"
)

const (
	requestTimeout = 60 * time.Second
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// extractor is the part of youtube.Client the fetcher depends on.
type extractor interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

type Fetcher struct {
	cfg      fetcher.Config
	client   extractor
	transfer *transfer
	log      log.Logger
}

func New(cfg fetcher.Config, logger log.Logger) *Fetcher {
	logger = log.With(logger, "component", "youtube_fetcher")

	return &Fetcher{
		cfg:      cfg,
		client:   &youtube.Client{HTTPClient: NewHTTPClient(cfg.RetryMax, logger).StandardClient()},
		transfer: newTransfer(cfg.BufferSize, cfg.MaxFileSize, cfg.StallTimeout, logger),
		log:      logger,
	}
}

// NewHTTPClient returns the retrying client used for extractor requests.
func NewHTTPClient(retryMax int, logger log.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.HTTPClient.Timeout = requestTimeout
	c.Logger = util_log.NewRetryableLogger(logger)

	return c
}

func (f *Fetcher) FetchMetadata(ctx context.Context, url string) (*job.Metadata, error) {
	v, err := f.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(job.ErrMetadata, "youtube get video: %v", err)
	}

	return toMetadata(v), nil
}

func (f *Fetcher) FetchMedia(ctx context.Context, url, dir string, onProgress fetcher.ProgressFunc) (string, error) {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	path, err := f.fetchMedia(ctx, url, dir, onProgress)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", errors.Wrapf(job.ErrTimeout, "download exceeded %s", f.cfg.Timeout)
	}
	return path, err
}

func (f *Fetcher) fetchMedia(ctx context.Context, url, dir string, onProgress fetcher.ProgressFunc) (string, error) {
	v, err := f.client.GetVideoContext(ctx, url)
	if err != nil {
		return "", errors.Wrapf(job.ErrTransfer, "youtube get video: %v", err)
	}

	format, err := selectFormat(v.Formats, f.cfg.MaxHeight)
	if err != nil {
		return "", err
	}
	if f.cfg.MaxFileSize > 0 && format.ContentLength > f.cfg.MaxFileSize {
		return "", errors.Wrapf(job.ErrFileTooLarge, "format %d is %d bytes, maximum is %d",
			format.ItagNo, format.ContentLength, f.cfg.MaxFileSize)
	}

	streamURL, err := f.client.GetStreamURLContext(ctx, v, format)
	if err != nil {
		return "", errors.Wrapf(job.ErrTransfer, "youtube get stream url: %v", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "youtube fetch media os.MkdirAll")
	}

	dst := filepath.Join(dir, fileName(v.Title, v.ID, format.MimeType))
	_ = level.Info(f.log).Log("msg", "start downloading", "video_id", v.ID, "itag", format.ItagNo,
		"quality", format.QualityLabel, "dst", dst)

	return f.transfer.Do(ctx, dst, streamURL, onProgress)
}
