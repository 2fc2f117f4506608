// Package monitor implements the attached job loop: it polls the
// scheduler, streams new artifact output to the terminal, and reacts to
// detach and cancel requests, cleaning up the session and workspace when
// a terminal status is observed.
//
// The loop is single-threaded and event-driven: each iteration selects
// between the poll timer, an injected user signal, and context
// cancellation, so a detach or cancel is never delayed by more than one
// tick and tests can drive the machine with plain channel sends.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/clemsonciti/slrun"
)

// Signal is a user request delivered to a running monitor. The CLI
// translates process signals into these; tests send them directly.
type Signal int

const (
	SignalDetach Signal = iota
	SignalCancel
)

// Result is the outcome of one attachment.
type Result struct {
	Status   slrun.Status
	ExitCode int
	// Detached is true when the user detached: the job keeps running and
	// nothing was cleaned up.
	Detached bool
	// TimedOut is true when cancel-on-timeout fired.
	TimedOut bool
}

// HistoryRecorder receives finished jobs. Recording is best-effort:
// failures are logged and never disturb the loop.
type HistoryRecorder interface {
	RecordFinal(sess *slrun.JobSession, status slrun.Status, exitCode int) error
}

const (
	DefaultPollInterval = time.Second
	// DefaultReplayBytes bounds how much existing output each stream
	// replays on reattachment.
	DefaultReplayBytes = 64 * 1024

	// unknownGrace is how many consecutive UNKNOWN observations are
	// tolerated before the job is declared gone: right after submission
	// squeue and sacct may briefly have no record of the id.
	unknownGrace = 3
	// cancelGrace bounds how long a cancellation waits for the scheduler
	// to confirm before being treated as done anyway.
	cancelGrace = 10 * time.Second
)

// Monitor runs the attached-streaming state machine for one job session.
type Monitor struct {
	Client  slrun.SchedulerClient
	Store   slrun.SessionStore
	History HistoryRecorder // optional

	Session *slrun.JobSession

	PollInterval    time.Duration // default DefaultPollInterval
	Timeout         time.Duration // local soft boundary; 0 disables
	CancelOnTimeout bool
	ReplayBytes     int64 // default DefaultReplayBytes

	Out io.Writer // job stdout destination; default os.Stdout
	Err io.Writer // job stderr and status messages; default os.Stderr

	stdout streamCursor
	stderr streamCursor

	lastStatus    slrun.Status
	unknownStreak int
	warnedTimeout bool
	dots          int
}

// Run monitors the session until a terminal status, a detach or cancel
// signal, or ctx cancellation. resume marks a reattachment: the stream
// cursors then start a bounded distance from the end of the artifacts
// instead of at the beginning.
func (m *Monitor) Run(ctx context.Context, signals <-chan Signal, resume bool) (*Result, error) {
	if m.PollInterval <= 0 {
		m.PollInterval = DefaultPollInterval
	}
	if m.ReplayBytes <= 0 {
		m.ReplayBytes = DefaultReplayBytes
	}
	if m.Out == nil {
		m.Out = os.Stdout
	}
	if m.Err == nil {
		m.Err = os.Stderr
	}
	m.stdout = streamCursor{path: m.Session.OutputLog, dst: m.Out}
	m.stderr = streamCursor{path: m.Session.ErrorLog, dst: m.Err}
	if resume {
		m.stdout.seekTail(m.ReplayBytes)
		m.stderr.seekTail(m.ReplayBytes)
	}
	m.lastStatus = m.Session.LastStatus

	// Fire the first tick immediately.
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sig := <-signals:
			switch sig {
			case SignalDetach:
				return m.detach()
			case SignalCancel:
				return m.cancel(ctx)
			}
		case <-timer.C:
			res, err := m.tick(ctx)
			if res != nil || err != nil {
				return res, err
			}
			timer.Reset(m.PollInterval)
		}
	}
}

// tick performs one poll iteration. A non-nil Result ends the loop.
func (m *Monitor) tick(ctx context.Context) (*Result, error) {
	if res, err := m.checkTimeout(ctx); res != nil || err != nil {
		return res, err
	}

	info, err := m.Client.QueryStatus(ctx, m.Session.JobID)
	if err != nil {
		// The client already retried; this is persistent.
		return nil, err
	}
	status := info.Status

	if status == slrun.StatusUnknown {
		m.unknownStreak++
		if m.unknownStreak < unknownGrace {
			return nil, nil
		}
		m.finishDots()
		fmt.Fprintf(m.Err, "\nWarning: scheduler has no record of job %v; assuming it is gone.\n",
			m.Session.JobID)
		m.drainAll()
		m.recordHistory(slrun.StatusUnknown, 0)
		m.cleanup()
		return &Result{Status: slrun.StatusUnknown}, nil
	}
	m.unknownStreak = 0

	if status != m.lastStatus {
		m.printStateChange(info)
		m.lastStatus = status
		m.Session.LastStatus = status
		if err := m.Store.Save(m.Session); err != nil {
			slog.Warn("failed to persist session status",
				"jobID", m.Session.JobID, "err", err)
		}
	}

	wrote := m.drainAll()

	if status.IsTerminal() {
		// Flush everything produced up to the terminal observation
		// before any cleanup runs.
		m.drainAll()
		m.finishDots()
		fmt.Fprintf(m.Err, "\nJob %v has %v\n",
			m.Session.JobID, strings.ToLower(string(status)))
		exit := 0
		if info.HasExitCode {
			exit = info.ExitCode
		}
		m.recordHistory(status, exit)
		m.cleanup()
		return &Result{Status: status, ExitCode: exit}, nil
	}

	if status == slrun.StatusPending && !wrote {
		m.printDot()
	}
	return nil, nil
}

// checkTimeout enforces the local wall-clock boundary, measured from
// submission. The boundary is soft by default: one warning per
// attachment, and monitoring continues. With CancelOnTimeout the job is
// cancelled instead and the result reports TIMEOUT.
func (m *Monitor) checkTimeout(ctx context.Context) (*Result, error) {
	if m.Timeout <= 0 || time.Since(m.Session.CreatedAt) < m.Timeout {
		return nil, nil
	}
	if !m.CancelOnTimeout {
		if !m.warnedTimeout {
			m.finishDots()
			fmt.Fprintf(m.Err, "\nWarning: local timeout of %v elapsed; job %v keeps running. Set timeout_cancel to cancel instead.\n",
				m.Timeout, m.Session.JobID)
			m.warnedTimeout = true
		}
		return nil, nil
	}
	m.finishDots()
	fmt.Fprintf(m.Err, "\nTimeout after %v, cancelling job %v...\n",
		m.Timeout, m.Session.JobID)
	res, err := m.cancel(ctx)
	if err != nil {
		return nil, err
	}
	res.Status = slrun.StatusTimeout
	res.TimedOut = true
	return res, nil
}

// detach persists the session for a later attach and leaves the job
// untouched.
func (m *Monitor) detach() (*Result, error) {
	now := time.Now()
	m.Session.DetachedAt = &now
	if err := m.Store.Save(m.Session); err != nil {
		return nil, fmt.Errorf("failed to persist session on detach: %w", err)
	}
	m.finishDots()
	fmt.Fprintf(m.Err, "\n\nDetached from job %v. Job will continue running.\n", m.Session.JobID)
	fmt.Fprintf(m.Err, "Output logs: %v\n", m.Session.OutputLog)
	fmt.Fprintf(m.Err, "Error logs: %v\n", m.Session.ErrorLog)
	fmt.Fprintf(m.Err, "Reattach with: slrun attach %v\n", m.Session.JobID)
	return &Result{Status: m.lastStatus, Detached: true}, nil
}

// cancel asks the scheduler to cancel the job, waits a bounded grace
// period for a terminal confirmation, then drains and cleans up.
func (m *Monitor) cancel(ctx context.Context) (*Result, error) {
	m.finishDots()
	fmt.Fprintf(m.Err, "\nCancelling job %v...\n", m.Session.JobID)
	if err := m.Client.Cancel(ctx, m.Session.JobID); err != nil {
		slog.Warn("failed to cancel job", "jobID", m.Session.JobID, "err", err)
	}

	status := slrun.StatusCancelled
	exit := 0
	deadline := time.Now().Add(cancelGrace)
	for time.Now().Before(deadline) {
		info, err := m.Client.QueryStatus(ctx, m.Session.JobID)
		if err != nil {
			break
		}
		if info.Status.IsTerminal() {
			status = info.Status
			if info.HasExitCode {
				exit = info.ExitCode
			}
			break
		}
		if info.Status == slrun.StatusUnknown {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.PollInterval):
		}
	}

	m.drainAll()
	m.recordHistory(status, exit)
	m.cleanup()
	return &Result{Status: status, ExitCode: exit}, nil
}

// drainAll reads both artifacts in poll order: stdout first, then stderr.
// Interleaving between the two streams follows polling order, not byte
// arrival order across streams.
func (m *Monitor) drainAll() bool {
	wroteOut := m.stdout.drain()
	wroteErr := m.stderr.drain()
	return wroteOut || wroteErr
}

// cleanup removes the session record and the temporary directory.
// Cleanup is best-effort: artifacts already removed are a no-op, and a
// failure never masks a terminal result.
func (m *Monitor) cleanup() {
	if err := m.Store.Delete(m.Session.JobID); err != nil {
		slog.Warn("failed to delete session record",
			"jobID", m.Session.JobID, "err", err)
	}
	if err := slrun.RemoveWorkspace(m.Session.TempDir); err != nil {
		slog.Warn("failed to remove job workspace",
			"jobID", m.Session.JobID, "err", err)
	}
}

func (m *Monitor) recordHistory(status slrun.Status, exitCode int) {
	if m.History == nil {
		return
	}
	if err := m.History.RecordFinal(m.Session, status, exitCode); err != nil {
		slog.Warn("failed to record job history",
			"jobID", m.Session.JobID, "err", err)
	}
}

func (m *Monitor) printStateChange(info slrun.StatusInfo) {
	m.finishDots()
	line := strings.Repeat("-", 40)
	fmt.Fprintf(m.Err, "\n%v\n", line)
	fmt.Fprintf(m.Err, "Job ID: %v\n", m.Session.JobID)
	fmt.Fprintf(m.Err, "State: %v\n", info.Status)
	if info.Status == slrun.StatusPending && info.Reason != "" {
		fmt.Fprintf(m.Err, "Reason: %v\n", info.Reason)
	}
	if info.Status == slrun.StatusRunning && info.NodeList != "" {
		fmt.Fprintf(m.Err, "Running on: %v\n", info.NodeList)
	}
	fmt.Fprintf(m.Err, "%v\n\n", line)
}

// printDot shows queue-wait progress while PENDING with no output.
func (m *Monitor) printDot() {
	m.dots++
	if m.dots%80 == 0 {
		fmt.Fprintln(m.Err, ".")
		return
	}
	fmt.Fprint(m.Err, ".")
}

func (m *Monitor) finishDots() {
	if m.dots > 0 {
		fmt.Fprintln(m.Err)
		m.dots = 0
	}
}
