package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ValerySidorin/ytgrab/pkg/downloader"
	"github.com/ValerySidorin/ytgrab/pkg/job"
)

const (
	msgInvalidURL     = "Invalid YouTube URL format"
	msgInvalidBody    = "Request body must be a JSON object with a non-empty url"
	msgJobNotFound    = "Job not found"
	msgStarted        = "Download started successfully"
	msgCancelled      = "Job cancelled successfully"
	msgAlreadyDone    = "Job already finished"
	msgMetadataPrefix = "Error getting video metadata: "
)

type downloadResponse struct {
	JobID     string        `json:"job_id"`
	Status    job.Status    `json:"status"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
	Metadata  *job.Metadata `json:"metadata"`
}

func (a *API) startDownload(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeURLRequest(w, r)
	if !ok {
		a.writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	ctx, cancel := a.metadataContext(r)
	defer cancel()

	j, err := a.d.Start(ctx, req.URL)
	switch {
	case err == nil:
	case errors.Is(err, job.ErrInvalidInput):
		a.writeError(w, http.StatusBadRequest, msgInvalidURL)
		return
	case errors.Is(err, downloader.ErrNotRunning):
		a.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, job.ErrAlreadyExists):
		_ = level.Error(a.log).Log("msg", "start download", "err", err)
		a.writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	default:
		_ = level.Warn(a.log).Log("msg", "metadata fetch failed", "url", req.URL, "err", err)
		a.writeError(w, http.StatusBadRequest, msgMetadataPrefix+err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, downloadResponse{
		JobID:     j.ID,
		Status:    j.Status,
		Message:   msgStarted,
		CreatedAt: j.CreatedAt,
		Metadata:  j.Metadata,
	})
}

type statusResponse struct {
	JobID        string     `json:"job_id"`
	Status       job.Status `json:"status"`
	Progress     *float64   `json:"progress,omitempty"`
	Message      string     `json:"message"`
	FilePath     string     `json:"file_path,omitempty"`
	ErrorDetails string     `json:"error_details,omitempty"`
}

func (a *API) downloadStatus(w http.ResponseWriter, r *http.Request) {
	j, err := a.d.Get(mux.Vars(r)["jobId"])
	if err != nil {
		a.writeJobError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, statusResponse{
		JobID:        j.ID,
		Status:       j.Status,
		Progress:     j.Progress,
		Message:      j.Status.Message(),
		FilePath:     j.FilePath,
		ErrorDetails: j.ErrorDetails,
	})
}

type metadataResponse struct {
	Success  bool          `json:"success"`
	Metadata *job.Metadata `json:"metadata,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// metadata never creates a job. Fetch failures are reported in the body with
// a 200 status; only a malformed URL is a client error.
func (a *API) metadata(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeURLRequest(w, r)
	if !ok {
		a.writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	ctx, cancel := a.metadataContext(r)
	defer cancel()

	md, err := a.d.Metadata(ctx, req.URL)
	if err != nil {
		if errors.Is(err, job.ErrInvalidInput) {
			a.writeError(w, http.StatusBadRequest, msgInvalidURL)
			return
		}
		a.writeJSON(w, http.StatusOK, metadataResponse{Success: false, Error: err.Error()})
		return
	}

	a.writeJSON(w, http.StatusOK, metadataResponse{Success: true, Metadata: md})
}

type jobsResponse struct {
	TotalJobs int       `json:"total_jobs"`
	Jobs      []job.Job `json:"jobs"`
}

func (a *API) listJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := a.d.List()
	a.writeJSON(w, http.StatusOK, jobsResponse{TotalJobs: len(jobs), Jobs: jobs})
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	if _, err := a.d.Cancel(mux.Vars(r)["jobId"]); err != nil {
		a.writeJobError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, messageResponse{Message: msgCancelled})
}

func (a *API) writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, job.ErrNotFound):
		a.writeError(w, http.StatusNotFound, msgJobNotFound)
	case errors.Is(err, job.ErrInvalidTransition):
		a.writeError(w, http.StatusConflict, msgAlreadyDone)
	default:
		_ = level.Error(a.log).Log("msg", "job request", "err", err)
		a.writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
	}
}

type testModeResponse struct {
	TestMode bool `json:"test_mode"`
}

func (a *API) testMode(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, testModeResponse{TestMode: a.d.TestMode()})
}

type healthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	TestMode    bool   `json:"test_mode"`
	DownloadDir string `json:"download_dir"`
	InFlight    int    `json:"in_flight"`
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Service:     ServiceName,
		TestMode:    a.d.TestMode(),
		DownloadDir: a.d.Dir(),
		InFlight:    a.d.InFlight(),
	})
}

type networkHealthResponse struct {
	Status         string          `json:"status"`
	YoutubeDomains map[string]bool `json:"youtube_domains"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (a *API) networkHealth(w http.ResponseWriter, r *http.Request) {
	resp := networkHealthResponse{
		Status:         "offline",
		YoutubeDomains: map[string]bool{},
		Timestamp:      time.Now().UTC(),
	}

	if a.d.TestMode() || a.prober == nil {
		a.writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	resp.YoutubeDomains = a.prober.Probe(ctx)
	resp.Status = "degraded"
	reachable := lo.Count(lo.Values(resp.YoutubeDomains), true)
	switch {
	case len(resp.YoutubeDomains) > 0 && reachable == len(resp.YoutubeDomains):
		resp.Status = "healthy"
	case reachable == 0:
		resp.Status = "unreachable"
	}

	a.writeJSON(w, http.StatusOK, resp)
}
