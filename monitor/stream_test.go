package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamCursorIncrementalDrain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.log")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0644))

	var buf bytes.Buffer
	c := streamCursor{path: path, dst: &buf}

	assert.True(t, c.drain())
	assert.Equal(t, "first\n", buf.String())

	// Nothing new: no write, offset holds.
	assert.False(t, c.drain())
	assert.Equal(t, "first\n", buf.String())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.True(t, c.drain())
	assert.Equal(t, "first\nsecond\n", buf.String())
}

func TestStreamCursorMissingFile(t *testing.T) {
	var buf bytes.Buffer
	c := streamCursor{path: filepath.Join(t.TempDir(), "nope.log"), dst: &buf}

	// A file the scheduler has not created yet is quiet, not a failure.
	assert.False(t, c.drain())
	assert.Zero(t, c.failStreak)
	assert.Zero(t, buf.Len())
}

func TestStreamCursorSeekTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.log")
	content := strings.Repeat("y", 5000) + "TAIL"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	var buf bytes.Buffer
	c := streamCursor{path: path, dst: &buf}
	c.seekTail(100)

	assert.True(t, c.drain())
	assert.Equal(t, 100, buf.Len())
	assert.True(t, strings.HasSuffix(buf.String(), "TAIL"))
}

func TestStreamCursorSeekTailSmallFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.log")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0644))

	var buf bytes.Buffer
	c := streamCursor{path: path, dst: &buf}
	c.seekTail(1 << 16)

	// Smaller than the replay bound: everything is replayed.
	assert.True(t, c.drain())
	assert.Equal(t, "short", buf.String())
}
