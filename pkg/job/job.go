package job

import (
	"time"

	"github.com/pkg/errors"
)

type Status string

const (
	Pending    Status = "pending"
	InProgress Status = "in_progress"
	Completed  Status = "completed"
	Failed     Status = "failed"
)

const CancelledByUser = "cancelled by user"

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == Completed || s == Failed
}

func (s Status) IsValid() bool {
	switch s {
	case Pending, InProgress, Completed, Failed:
		return true
	}
	return false
}

// CanTransition follows the job state machine. Staying in a non-terminal
// status is allowed so progress ticks can be applied.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case Pending:
		return to == Pending || to == InProgress || to == Failed
	case InProgress:
		return to == InProgress || to == Completed || to == Failed
	}
	return false
}

// Message is the human readable summary returned by status queries.
func (s Status) Message() string {
	switch s {
	case Pending:
		return "Download queued"
	case InProgress:
		return "Download in progress"
	case Completed:
		return "Download completed"
	case Failed:
		return "Download failed"
	}
	return ""
}

type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Duration    int    `json:"duration"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Uploader    string `json:"uploader,omitempty"`
	ViewCount   int    `json:"view_count,omitempty"`
	UploadDate  string `json:"upload_date,omitempty"`
}

type Job struct {
	ID           string    `json:"job_id"`
	URL          string    `json:"url"`
	Status       Status    `json:"status"`
	Progress     *float64  `json:"progress,omitempty"`
	Metadata     *Metadata `json:"metadata,omitempty"`
	FilePath     string    `json:"file_path,omitempty"`
	ErrorDetails string    `json:"error_details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func New(id, url string, md *Metadata) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		URL:       url,
		Status:    Pending,
		Metadata:  md,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares nothing mutable with j. Metadata is
// immutable after creation and is shared.
func (j *Job) Clone() Job {
	c := *j
	if j.Progress != nil {
		p := *j.Progress
		c.Progress = &p
	}
	return c
}

// Patch carries the fields of a partial update. Nil fields are left alone.
type Patch struct {
	Status       *Status
	Progress     *float64
	FilePath     *string
	ErrorDetails *string
}

func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}

func ProgressPatch(p float64) Patch {
	s := InProgress
	return Patch{Status: &s, Progress: &p}
}

func CompletedPatch(filePath string) Patch {
	s := Completed
	return Patch{Status: &s, FilePath: &filePath}
}

func FailedPatch(details string) Patch {
	s := Failed
	return Patch{Status: &s, ErrorDetails: &details}
}

// Apply merges p into j after checking the state machine and the
// filePath/errorDetails presence rules. Leaving InProgress drops progress.
func (j *Job) Apply(p Patch) error {
	to := j.Status
	if p.Status != nil {
		to = *p.Status
	}

	if !to.IsValid() {
		return errors.Wrapf(ErrInvalidTransition, "unknown status %q", to)
	}
	if !j.Status.CanTransition(to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", j.Status, to)
	}
	if p.FilePath != nil && to != Completed {
		return errors.Wrapf(ErrInvalidTransition, "file path set on %s job", to)
	}
	if p.ErrorDetails != nil && to != Failed {
		return errors.Wrapf(ErrInvalidTransition, "error details set on %s job", to)
	}
	if to == Completed && (p.FilePath == nil || *p.FilePath == "") {
		return errors.Wrap(ErrInvalidTransition, "completed job without file path")
	}
	if to == Failed && (p.ErrorDetails == nil || *p.ErrorDetails == "") {
		return errors.Wrap(ErrInvalidTransition, "failed job without error details")
	}
	if p.Progress != nil && to != InProgress {
		return errors.Wrapf(ErrInvalidTransition, "progress set on %s job", to)
	}
	if p.Progress != nil && (*p.Progress < 0 || *p.Progress > 100) {
		return errors.Wrapf(ErrInvalidTransition, "progress %.2f out of range", *p.Progress)
	}

	j.Status = to
	switch {
	case p.Progress != nil:
		v := *p.Progress
		j.Progress = &v
	case to != InProgress:
		// Progress only exists while transferring.
		j.Progress = nil
	}
	if p.FilePath != nil {
		j.FilePath = *p.FilePath
	}
	if p.ErrorDetails != nil {
		j.ErrorDetails = *p.ErrorDetails
	}
	j.UpdatedAt = time.Now().UTC()

	return nil
}
