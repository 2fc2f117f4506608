// Package slurm implements the scheduler client against the Slurm
// command-line tools: sbatch for submission, squeue and sacct for status,
// scancel for cancellation.
package slurm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"os/user"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/clemsonciti/slrun"
)

// IsAvailable reports whether the Slurm client tools are on PATH.
func IsAvailable() bool {
	_, err := exec.LookPath("squeue")
	if err == nil {
		slog.Debug("found squeue")
		return true
	}
	slog.Debug("failed to find squeue", "err", err)
	return false
}

// errJobNotFound marks queries the scheduler answered but has no record
// for. It never escapes the package: QueryStatus maps it to StatusUnknown.
var errJobNotFound = errors.New("job not found")

type responseMode int

const (
	modeJSON responseMode = iota
	modeYAML
)

// Options configure the client.
type Options struct {
	// SubmitHost, when non-empty, runs every scheduler command over SSH
	// on the given host ("[user@]host[:port]") instead of locally.
	SubmitHost string
}

// Client talks to Slurm through its command-line interface. It implements
// slrun.SchedulerClient.
type Client struct {
	runner runner
	// sacctMode starts as JSON and falls back to YAML for Slurm builds
	// whose sacct has no JSON serializer plugin.
	sacctMode responseMode

	maxRetryElapsed time.Duration
}

// NewClient returns a Slurm-backed scheduler client.
func NewClient(opts Options) (*Client, error) {
	c := &Client{
		runner:          localRunner{},
		sacctMode:       modeJSON,
		maxRetryElapsed: 10 * time.Second,
	}
	if opts.SubmitHost != "" {
		r, err := newSSHRunner(opts.SubmitHost)
		if err != nil {
			return nil, err
		}
		c.runner = r
	}
	return c, nil
}

// Close releases the underlying runner (the SSH connection, when a submit
// host is in use).
func (c *Client) Close() error {
	return c.runner.close()
}

// Submit submits the batch script and returns the scheduler-assigned job
// id. The script carries the output/error/chdir directives; resource
// requests go on the command line.
func (c *Client) Submit(ctx context.Context, spec *slrun.ResourceSpec, scriptPath string) (string, error) {
	username := "user"
	if me, err := user.Current(); err == nil {
		username = me.Username
	}
	args := []string{
		"--parsable",
		"--job-name", "slrun_" + username,
		"--time", spec.Time,
		"--mem", spec.Mem,
		"--gres", spec.Gres,
	}
	if len(spec.Nodelist) > 0 {
		args = append(args, "--nodelist", strings.Join(spec.Nodelist, ","))
	}
	if len(spec.Exclude) > 0 {
		args = append(args, "--exclude", strings.Join(spec.Exclude, ","))
	}
	args = append(args, scriptPath)

	slog.Debug("submitting job", "args", args)
	out, err := c.runRetry(ctx, "sbatch", args...)
	if err != nil {
		return "", fmt.Errorf("failed to submit job: %w", err)
	}
	// With --parsable, sbatch prints "jobid" or "jobid;cluster".
	jobID, _, _ := strings.Cut(strings.TrimSpace(string(out)), ";")
	if jobID == "" {
		return "", fmt.Errorf("sbatch returned no job id")
	}
	slog.Debug("submitted job", "jobID", jobID)
	return jobID, nil
}

// QueryStatus fetches the current status of jobID: squeue while the job
// is queued or running, sacct once it has left the queue. Slurm reporting
// no record of the id is StatusUnknown with a nil error, never a failure.
func (c *Client) QueryStatus(ctx context.Context, jobID string) (slrun.StatusInfo, error) {
	unknown := slrun.StatusInfo{Status: slrun.StatusUnknown}

	info, squeueErr := c.squeueStatus(ctx, jobID)
	if squeueErr == nil {
		return info, nil
	}
	if errors.Is(squeueErr, slrun.ErrSchedulerUnavailable) {
		return unknown, squeueErr
	}

	info, sacctErr := c.sacctStatus(ctx, jobID)
	if sacctErr == nil {
		return info, nil
	}
	if errors.Is(sacctErr, slrun.ErrSchedulerUnavailable) {
		return unknown, sacctErr
	}

	// Both tools answered but neither knows the job: purged from
	// scheduler history, or never submitted.
	slog.Debug("job not found", "jobID", jobID, "squeueErr", squeueErr, "sacctErr", sacctErr)
	return unknown, nil
}

// Cancel asks Slurm to cancel the job. Cancelling a job the scheduler no
// longer knows is a no-op.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	_, err := c.runRetry(ctx, "scancel", jobID)
	if err != nil && strings.Contains(err.Error(), "Invalid job id") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cancel job %v: %w", jobID, err)
	}
	return nil
}

// runRetry runs one scheduler command, retrying transient execution
// failures (controller timeouts, connection blips) with exponential
// backoff. Exhaustion wraps slrun.ErrSchedulerUnavailable; errors the
// scheduler produced deliberately (bad job id, bad arguments) are
// returned immediately.
func (c *Client) runRetry(ctx context.Context, name string, args ...string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetryElapsed

	var out []byte
	op := func() error {
		var err error
		out, err = c.runner.run(ctx, name, args...)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		slog.Debug("scheduler command failed, retrying", "cmd", name, "err", err)
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if err == nil {
		return out, nil
	}
	if isRetryable(err) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %v: %v", slrun.ErrSchedulerUnavailable, name, err)
	}
	return nil, err
}

// isRetryable reports whether the error looks like a transient failure to
// reach the scheduler, as opposed to a real answer such as an invalid job
// id.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"socket timed out",
		"connection refused",
		"connection reset",
		"unable to contact slurm controller",
		"i/o timeout",
		"broken pipe",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
