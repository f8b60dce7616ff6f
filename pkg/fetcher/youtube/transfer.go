package youtube

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/ValerySidorin/ytgrab/pkg/fetcher"
	"github.com/ValerySidorin/ytgrab/pkg/job"
)

// maxRunningPercent keeps progress ticks below 100, which only the final
// report may carry.
const maxRunningPercent = 99.0

type transfer struct {
	grabClient   *grab.Client
	maxSize      int64
	stallTimeout time.Duration
	tick         time.Duration
	stat         func(name string) (os.FileInfo, error)
	log          log.Logger
}

func newTransfer(bufferSize int, maxSize int64, stallTimeout time.Duration, log log.Logger) *transfer {
	c := grab.NewClient()
	c.BufferSize = bufferSize
	c.UserAgent = userAgent

	return &transfer{
		grabClient:   c,
		maxSize:      maxSize,
		stallTimeout: stallTimeout,
		tick:         1 * time.Second,
		stat:         os.Stat,
		log:          log,
	}
}

// Do downloads url into dst, reporting progress every tick. The returned path
// is confirmed to exist.
func (t *transfer) Do(ctx context.Context, dst, url string, onProgress fetcher.ProgressFunc) (string, error) {
	req, err := grab.NewRequest(dst, url)
	if err != nil {
		return "", errors.Wrapf(job.ErrTransfer, "create request: %v", err)
	}
	req.NoResume = true

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	req = req.WithContext(ctx)

	resp := t.grabClient.Do(req)

	if t.maxSize > 0 && resp.Size() > t.maxSize {
		cancel(errors.Wrapf(job.ErrFileTooLarge, "remote file is %d bytes, maximum is %d", resp.Size(), t.maxSize))
	}

	// Sometimes a connection is lost, but we can not properly detect it,
	// so we need to monitor, if file is still downloading
	if t.stallTimeout > 0 {
		go t.monitorStall(resp, cancel)
	}

	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

Loop:
	for {
		select {
		case <-ticker.C:
			if t.maxSize > 0 && resp.BytesComplete() > t.maxSize {
				cancel(errors.Wrapf(job.ErrFileTooLarge, "transferred more than %d bytes", t.maxSize))
			}

			_ = level.Debug(t.log).Log("msg", fmt.Sprintf("transferred %d / %d bytes (%.2f%%)",
				resp.BytesComplete(),
				resp.Size(),
				100*resp.Progress()), "dst", dst)

			if onProgress != nil && resp.Size() > 0 {
				onProgress(fetcher.Progress{Percent: runningPercent(resp.Progress())})
			}
		case <-resp.Done:
			break Loop
		}
	}

	// A size or stall abort wins even if the body managed to finish.
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded) {
		removePartial(resp.Filename)
		return "", cause
	}

	if err := resp.Err(); err != nil {
		removePartial(resp.Filename)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Wrapf(job.ErrTransfer, "download aborted: %v", ctxErr)
		}
		return "", errors.Wrapf(job.ErrTransfer, "download: %v", err)
	}

	if _, err := t.stat(resp.Filename); err != nil {
		return "", errors.Wrapf(job.ErrFileNotFound, "%s: %v", resp.Filename, err)
	}

	if onProgress != nil {
		onProgress(fetcher.Progress{Percent: 100, FilePath: resp.Filename})
	}
	return resp.Filename, nil
}

func (t *transfer) monitorStall(resp *grab.Response, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(t.stallTimeout)
	defer ticker.Stop()

	prev := resp.BytesComplete()
	for {
		select {
		case <-ticker.C:
			curr := resp.BytesComplete()
			if curr == prev {
				_ = level.Error(t.log).Log("msg", "seems like an existing connection was forcibly closed by the remote host, canceling context",
					"dst", resp.Filename)
				cancel(errors.Wrapf(job.ErrTransfer, "no progress for %s", t.stallTimeout))
				return
			}
			prev = curr
		case <-resp.Done:
			return
		}
	}
}

func runningPercent(p float64) float64 {
	p *= 100
	if p < 0 {
		return 0
	}
	if p > maxRunningPercent {
		return maxRunningPercent
	}
	return p
}

func removePartial(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
