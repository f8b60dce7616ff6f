package io

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sizeTest struct {
	reader io.Reader
	len    int64
	isErr  bool
}

func TestTryGetSize(t *testing.T) {
	tests := []sizeTest{
		{bytes.NewReader([]byte("12345")), 5, false},
		{strings.NewReader("abc"), 3, false},
		{nil, 0, true},
		{io.LimitReader(strings.NewReader("abc"), 1), 0, true},
	}

	for _, v := range tests {
		res, err := TryGetSize(v.reader)
		assert.Equal(t, v.len, res, fmt.Sprintf("output len %d not equal to expected %d", res, v.len))
		assert.Equal(t, v.isErr, err != nil, "output err is not valid")
	}
}

func TestTryGetSizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.mp4")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	size, err := TryGetSize(f)
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
}

func TestSizeOrUnknown(t *testing.T) {
	assert.Equal(t, int64(2), SizeOrUnknown(strings.NewReader("ab")))
	assert.Equal(t, UnknownSize, SizeOrUnknown(io.LimitReader(strings.NewReader("ab"), 1)))
}
