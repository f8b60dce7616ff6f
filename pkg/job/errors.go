package job

import (
	"github.com/pkg/errors"
)

var (
	// Request-time failures, surfaced synchronously.
	ErrInvalidInput = errors.New("invalid source URL")
	ErrMetadata     = errors.New("metadata fetch failed")

	// Background failures, recorded into the job.
	ErrTransfer     = errors.New("media transfer failed")
	ErrFileTooLarge = errors.New("file size limit exceeded")
	ErrTimeout      = errors.New("fetch timed out")
	ErrFileNotFound = errors.New("downloaded file not found")

	ErrDurationExceeded = errors.New("media duration limit exceeded")

	// Store failures.
	ErrNotFound          = errors.New("job not found")
	ErrAlreadyExists     = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid job transition")
)
