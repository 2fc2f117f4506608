package slrun

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrSchedulerUnavailable wraps persistent failures to run scheduler
// commands, after the client has exhausted its retries. Distinct from the
// scheduler having no record of a job, which is StatusUnknown and no error.
var ErrSchedulerUnavailable = errors.New("scheduler unavailable")

// ErrSessionNotFound is returned by SessionStore.Load for unknown job ids.
var ErrSessionNotFound = errors.New("session not found")

// Status is the slrun view of a scheduler job state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusTimeout   Status = "TIMEOUT"
	// StatusUnknown means the scheduler has no record of the job (purged
	// from history, or a failed lookup). It is a displayable state, not an
	// error.
	StatusUnknown Status = "UNKNOWN"
)

// IsTerminal reports whether no further scheduler-side transition can
// occur from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// NormalizeStatus maps a raw Slurm job state to a Status. Slurm has more
// states than slrun cares about; transitional states collapse into
// PENDING/RUNNING and the failure variants into FAILED.
func NormalizeStatus(raw string) Status {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	// Cancelled jobs may report a suffix, e.g. "CANCELLED by 1234".
	if strings.HasPrefix(raw, "CANCELLED") {
		return StatusCancelled
	}
	switch raw {
	case "PENDING", "CONFIGURING", "REQUEUED", "SUSPENDED", "RESIZING":
		return StatusPending
	case "RUNNING", "COMPLETING":
		return StatusRunning
	case "COMPLETED":
		return StatusCompleted
	case "FAILED", "NODE_FAIL", "OUT_OF_MEMORY", "PREEMPTED", "BOOT_FAIL", "DEADLINE":
		return StatusFailed
	case "TIMEOUT":
		return StatusTimeout
	}
	return StatusUnknown
}

// ResourceSpec is the effective launch request after config resolution:
// built-in defaults, config files, an optional profile, and CLI flags
// merged into one value. It is immutable once resolved and passed down the
// call chain; nothing reads config state after resolution.
type ResourceSpec struct {
	Time     string
	Mem      string
	Gres     string
	Nodelist []string // sorted union across all config layers
	Exclude  []string // sorted union across all config layers
	CondaEnv string

	// SubmitHost, when set, runs scheduler commands over SSH on a login
	// node instead of locally.
	SubmitHost string

	// Timeout is the local soft wall-clock boundary measured from
	// submission. CancelOnTimeout decides whether crossing it cancels the
	// job or only warns.
	Timeout         time.Duration
	CancelOnTimeout bool
	PollInterval    time.Duration

	WorkDir string
	Command []string
}

// StatusInfo is one status observation for a job.
type StatusInfo struct {
	Status Status
	// Reason is the scheduler's pending reason, when it reports one.
	Reason string
	// NodeList names the allocated nodes, when running.
	NodeList string
	// ExitCode is valid only when HasExitCode, typically once terminal.
	ExitCode    int
	HasExitCode bool
}

// SchedulerClient is the boundary to the external batch scheduler. All
// three operations cross a process or network boundary and accept a
// context for cancellation.
type SchedulerClient interface {
	// Submit submits the script with the resources in spec and returns
	// the scheduler-assigned job id.
	Submit(ctx context.Context, spec *ResourceSpec, scriptPath string) (string, error)
	// QueryStatus fetches the current status of jobID. A job the
	// scheduler has no record of is StatusUnknown with a nil error.
	QueryStatus(ctx context.Context, jobID string) (StatusInfo, error)
	// Cancel asks the scheduler to cancel jobID.
	Cancel(ctx context.Context, jobID string) error
}

// JobSession is the persisted record of a submitted job. It is created at
// submission, updated on detach and on status changes by the attached
// process, and removed when a terminal status is observed while attached
// or the job is explicitly cancelled.
type JobSession struct {
	JobID     string    `json:"job_id"`
	Command   []string  `json:"command"`
	WorkDir   string    `json:"work_dir"`
	TempDir   string    `json:"temp_dir"`
	OutputLog string    `json:"output_log"`
	ErrorLog  string    `json:"error_log"`
	CreatedAt time.Time `json:"created_at"`
	// DetachedAt is nil while a process is attached.
	DetachedAt *time.Time `json:"detached_at,omitempty"`
	LastStatus Status     `json:"last_status"`
}

// SessionStore persists job sessions across process exits. The store is
// the single source of truth for session existence; implementations must
// write atomically so concurrent readers never observe partial records.
type SessionStore interface {
	Save(s *JobSession) error
	Load(jobID string) (*JobSession, error)
	List() ([]*JobSession, error)
	Delete(jobID string) error
}
