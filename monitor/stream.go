package monitor

import (
	"io"
	"log/slog"
	"os"
)

// maxReadFailures is how many consecutive failed drains are tolerated
// quietly before a warning is emitted. Read errors here are usually NFS
// staleness and clear up on a later tick.
const maxReadFailures = 5

// streamCursor tracks how much of one artifact file has been delivered to
// the terminal. The offset only moves forward and lives in memory for the
// duration of one attachment; reattachment rebuilds it from the file size.
type streamCursor struct {
	path string
	dst  io.Writer

	offset     int64
	failStreak int
}

// drain copies any bytes appended since the last drain to dst and reports
// whether new output was delivered. Errors skip the tick: quietly up to
// maxReadFailures consecutive times, with a warning after that. A
// successful read resets the streak.
func (c *streamCursor) drain() bool {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			// The scheduler has not created the file yet.
			return false
		}
		c.noteFailure(err)
		return false
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		c.noteFailure(err)
		return false
	}
	if fi.Size() <= c.offset {
		c.failStreak = 0
		return false
	}
	if _, err := f.Seek(c.offset, io.SeekStart); err != nil {
		c.noteFailure(err)
		return false
	}
	n, err := io.Copy(c.dst, f)
	c.offset += n
	if err != nil {
		c.noteFailure(err)
		return n > 0
	}
	c.failStreak = 0
	return n > 0
}

func (c *streamCursor) noteFailure(err error) {
	c.failStreak++
	if c.failStreak == maxReadFailures {
		slog.Warn("repeatedly failed to read job output, still trying",
			"file", c.path, "err", err)
		return
	}
	slog.Debug("failed to read job output", "file", c.path, "err", err)
}

// seekTail positions the cursor so at most replayBytes of existing
// content is replayed. Used on reattachment so resuming a long-running
// job never replays an unbounded log.
func (c *streamCursor) seekTail(replayBytes int64) {
	fi, err := os.Stat(c.path)
	if err != nil {
		return
	}
	if fi.Size() > replayBytes {
		c.offset = fi.Size() - replayBytes
	}
}
