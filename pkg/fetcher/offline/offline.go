// Package offline implements the fetchers with synthetic data. It never
// touches the network and is selected by test mode.
package offline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/ValerySidorin/ytgrab/pkg/fetcher"
	"github.com/ValerySidorin/ytgrab/pkg/job"
	"github.com/ValerySidorin/ytgrab/pkg/validator"
)

const (
	ThumbnailURLTemplate = "https://img.youtube.com/vi/%s/maxresdefault.jpg"
	FileNameTemplate     = "test_video_%s.mp4"
)

type Fetcher struct {
	log log.Logger
}

func New(logger log.Logger) *Fetcher {
	return &Fetcher{log: log.With(logger, "component", "offline_fetcher")}
}

func (f *Fetcher) FetchMetadata(_ context.Context, url string) (*job.Metadata, error) {
	id, ok := validator.VideoID(url)
	if !ok {
		return nil, errors.Wrapf(job.ErrInvalidInput, "offline fetch metadata %q", url)
	}

	_ = level.Debug(f.log).Log("msg", "serving synthetic metadata", "video_id", id)
	return &job.Metadata{
		Title:       "Test Video",
		Description: "This is a test video for development",
		Duration:    120,
		Thumbnail:   fmt.Sprintf(ThumbnailURLTemplate, id),
		Uploader:    "Test Channel",
		ViewCount:   1000,
		UploadDate:  "20240101",
	}, nil
}

// FetchMedia writes a small placeholder file and reports completion once,
// before returning.
func (f *Fetcher) FetchMedia(ctx context.Context, url, dir string, onProgress fetcher.ProgressFunc) (string, error) {
	id, ok := validator.VideoID(url)
	if !ok {
		return "", errors.Wrapf(job.ErrInvalidInput, "offline fetch media %q", url)
	}
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, "offline fetch media")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "offline fetch media os.MkdirAll")
	}

	path := filepath.Join(dir, fmt.Sprintf(FileNameTemplate, id))
	content := fmt.Sprintf("placeholder media for %s\n", id)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrap(err, "offline fetch media os.WriteFile")
	}

	_ = level.Debug(f.log).Log("msg", "wrote placeholder file", "video_id", id, "path", path)
	if onProgress != nil {
		onProgress(fetcher.Progress{Percent: 100, FilePath: path})
	}
	return path, nil
}
