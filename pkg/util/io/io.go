package io

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// UnknownSize tells S3-compatible clients to stream with multipart upload.
const UnknownSize int64 = -1

func TryGetSize(r io.Reader) (int64, error) {
	switch f := r.(type) {
	case *bytes.Reader:
		return int64(f.Len()), nil
	case *strings.Reader:
		return int64(f.Len()), nil
	case *os.File:
		filestat, err := f.Stat()
		if err != nil {
			return 0, errors.Wrap(err, "stat file")
		}
		return filestat.Size(), nil
	}

	return 0, errors.Errorf("unsupported type of io.Reader: %T", r)
}

// SizeOrUnknown is TryGetSize that falls back to UnknownSize instead of
// failing on readers with no known length.
func SizeOrUnknown(r io.Reader) int64 {
	size, err := TryGetSize(r)
	if err != nil {
		return UnknownSize
	}
	return size
}
