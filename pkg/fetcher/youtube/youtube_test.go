package youtube

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValerySidorin/ytgrab/pkg/fetcher"
	"github.com/ValerySidorin/ytgrab/pkg/job"
)

var _ fetcher.Fetcher = (*Fetcher)(nil)

const mp4Mime = `video/mp4; codecs="avc1.42001E, mp4a.40.2"`

type fakeExtractor struct {
	video     *youtube.Video
	err       error
	streamURL string
}

func (f *fakeExtractor) GetVideoContext(_ context.Context, _ string) (*youtube.Video, error) {
	return f.video, f.err
}

func (f *fakeExtractor) GetStreamURLContext(_ context.Context, _ *youtube.Video, _ *youtube.Format) (string, error) {
	return f.streamURL, nil
}

type progressLog struct {
	mu      sync.Mutex
	reports []fetcher.Progress
}

func (p *progressLog) add(r fetcher.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, r)
}

func (p *progressLog) all() []fetcher.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]fetcher.Progress(nil), p.reports...)
}

func testVideo(contentLength int64) *youtube.Video {
	return &youtube.Video{
		ID:    "dQw4w9WgXcQ",
		Title: "Never: Gonna/Give?",
		Formats: youtube.FormatList{
			{ItagNo: 18, MimeType: mp4Mime, Height: 360, Width: 640, AudioChannels: 2, ContentLength: contentLength},
		},
	}
}

func newTestFetcher(cfg fetcher.Config, ex extractor) *Fetcher {
	tr := newTransfer(cfg.BufferSize, cfg.MaxFileSize, cfg.StallTimeout, log.NewNopLogger())
	tr.tick = 10 * time.Millisecond

	return &Fetcher{cfg: cfg, client: ex, transfer: tr, log: log.NewNopLogger()}
}

func payloadServer(t *testing.T, payload []byte) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// stallingServer announces size bytes, sends a few, then hangs until the
// client goes away.
func stallingServer(t *testing.T, size int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(size))
		_, _ = w.Write(make([]byte, 16))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMetadata(t *testing.T) {
	ex := &fakeExtractor{video: &youtube.Video{
		ID:          "dQw4w9WgXcQ",
		Title:       "title",
		Description: "desc",
		Author:      "author",
		Views:       42,
		Duration:    212 * time.Second,
		PublishDate: time.Date(2009, 10, 25, 0, 0, 0, 0, time.UTC),
		Thumbnails: youtube.Thumbnails{
			{URL: "small", Width: 120, Height: 90},
			{URL: "large", Width: 1280, Height: 720},
			{URL: "medium", Width: 480, Height: 360},
		},
	}}

	md, err := newTestFetcher(fetcher.Config{}, ex).FetchMetadata(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, &job.Metadata{
		Title:       "title",
		Description: "desc",
		Duration:    212,
		Thumbnail:   "large",
		Uploader:    "author",
		ViewCount:   42,
		UploadDate:  "20091025",
	}, md)
}

func TestFetchMetadataError(t *testing.T) {
	ex := &fakeExtractor{err: errors.New("video is private")}

	_, err := newTestFetcher(fetcher.Config{}, ex).FetchMetadata(context.Background(), "u")
	assert.True(t, errors.Is(err, job.ErrMetadata))
	assert.Contains(t, err.Error(), "video is private")
}

func TestFetchMedia(t *testing.T) {
	payload := bytes.Repeat([]byte("ytgrab"), 16*1024)
	srv := payloadServer(t, payload)
	ex := &fakeExtractor{video: testVideo(int64(len(payload))), streamURL: srv.URL}
	dir := filepath.Join(t.TempDir(), "uploads")

	f := newTestFetcher(fetcher.Config{BufferSize: 4096, MaxHeight: 720, Timeout: time.Minute}, ex)
	progress := &progressLog{}

	path, err := f.FetchMedia(context.Background(), "u", dir, progress.add)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Never_ Gonna_Give_.mp4"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	reports := progress.all()
	require.NotEmpty(t, reports)
	assert.Equal(t, fetcher.Progress{Percent: 100, FilePath: path}, reports[len(reports)-1])
	for _, r := range reports[:len(reports)-1] {
		assert.Empty(t, r.FilePath)
		assert.Less(t, r.Percent, 100.0)
	}
}

func TestFetchMediaFileVanished(t *testing.T) {
	payload := bytes.Repeat([]byte("ytgrab"), 1024)
	srv := payloadServer(t, payload)
	ex := &fakeExtractor{video: testVideo(int64(len(payload))), streamURL: srv.URL}
	dir := filepath.Join(t.TempDir(), "uploads")

	f := newTestFetcher(fetcher.Config{BufferSize: 4096, MaxHeight: 720, Timeout: time.Minute}, ex)
	var written string
	f.transfer.stat = func(name string) (os.FileInfo, error) {
		written = name
		require.NoError(t, os.Remove(name))
		return os.Stat(name)
	}
	progress := &progressLog{}

	path, err := f.FetchMedia(context.Background(), "u", dir, progress.add)
	assert.True(t, errors.Is(err, job.ErrFileNotFound), "unexpected error: %v", err)
	assert.Empty(t, path)
	assert.Equal(t, filepath.Join(dir, "Never_ Gonna_Give_.mp4"), written)

	for _, r := range progress.all() {
		assert.Less(t, r.Percent, 100.0)
		assert.Empty(t, r.FilePath)
	}
}

func TestFetchMediaRejectsLargeFormat(t *testing.T) {
	ex := &fakeExtractor{video: testVideo(1 << 30), streamURL: "http://127.0.0.1:1/never"}

	f := newTestFetcher(fetcher.Config{MaxFileSize: 1 << 20}, ex)
	_, err := f.FetchMedia(context.Background(), "u", t.TempDir(), nil)
	assert.True(t, errors.Is(err, job.ErrFileTooLarge))
}

func TestFetchMediaRejectsLargeRemoteFile(t *testing.T) {
	srv := payloadServer(t, make([]byte, 64*1024))
	ex := &fakeExtractor{video: testVideo(0), streamURL: srv.URL}
	dir := t.TempDir()

	f := newTestFetcher(fetcher.Config{MaxFileSize: 1024}, ex)
	_, err := f.FetchMedia(context.Background(), "u", dir, nil)
	assert.True(t, errors.Is(err, job.ErrFileTooLarge))
	assert.NoFileExists(t, filepath.Join(dir, "Never_ Gonna_Give_.mp4"))
}

func TestFetchMediaNoProgressiveFormat(t *testing.T) {
	v := testVideo(0)
	v.Formats = youtube.FormatList{{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Height: 1080}}

	_, err := newTestFetcher(fetcher.Config{}, &fakeExtractor{video: v}).FetchMedia(context.Background(), "u", t.TempDir(), nil)
	assert.True(t, errors.Is(err, job.ErrTransfer))
}

func TestFetchMediaRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	ex := &fakeExtractor{video: testVideo(0), streamURL: srv.URL}

	_, err := newTestFetcher(fetcher.Config{}, ex).FetchMedia(context.Background(), "u", t.TempDir(), nil)
	assert.True(t, errors.Is(err, job.ErrTransfer))
}

func TestFetchMediaStalled(t *testing.T) {
	srv := stallingServer(t, 1<<20)
	ex := &fakeExtractor{video: testVideo(0), streamURL: srv.URL}

	f := newTestFetcher(fetcher.Config{StallTimeout: 100 * time.Millisecond}, ex)
	_, err := f.FetchMedia(context.Background(), "u", t.TempDir(), nil)
	assert.True(t, errors.Is(err, job.ErrTransfer))
	assert.Contains(t, err.Error(), "no progress")
}

func TestFetchMediaTimeout(t *testing.T) {
	srv := stallingServer(t, 1<<20)
	ex := &fakeExtractor{video: testVideo(0), streamURL: srv.URL}

	f := newTestFetcher(fetcher.Config{Timeout: 100 * time.Millisecond}, ex)
	_, err := f.FetchMedia(context.Background(), "u", t.TempDir(), nil)
	assert.True(t, errors.Is(err, job.ErrTimeout))
}

func TestFetchMediaCancelled(t *testing.T) {
	srv := stallingServer(t, 1<<20)
	ex := &fakeExtractor{video: testVideo(0), streamURL: srv.URL}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := newTestFetcher(fetcher.Config{}, ex).FetchMedia(ctx, "u", t.TempDir(), nil)
	assert.True(t, errors.Is(err, job.ErrTransfer))
	assert.False(t, errors.Is(err, job.ErrTimeout))
}
