package slrun

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Workspace is the per-job temporary directory holding the generated batch
// script and the stdout/stderr artifact files the job appends to. It lives
// in the job's working directory so the artifacts sit on the same (shared)
// filesystem the compute nodes write to.
type Workspace struct {
	Dir        string
	ScriptPath string
	OutputLog  string
	ErrorLog   string
}

// NewWorkspace creates a workspace under workDir with empty artifact
// files, so streaming can begin before the job produces any output. All
// returned paths are absolute.
func NewWorkspace(workDir string) (*Workspace, error) {
	absWork, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory %v: %w", workDir, err)
	}
	runID := fmt.Sprintf("%d_%s", time.Now().Unix(), uuid.NewString()[:8])
	dir := filepath.Join(absWork, ".slrun_tmp_"+runID)
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %v: %w", dir, err)
	}
	w := Workspace{
		Dir:        dir,
		ScriptPath: filepath.Join(dir, "run_job.sh"),
		OutputLog:  filepath.Join(logDir, "output.log"),
		ErrorLog:   filepath.Join(logDir, "error.log"),
	}
	for _, p := range []string{w.OutputLog, w.ErrorLog} {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file %v: %w", p, err)
		}
		f.Close()
	}
	return &w, nil
}

// WriteScript renders the batch script wrapping the user command: a bash
// script carrying the output/error/chdir directives, sourcing the user's
// bashrc, and optionally activating a conda environment before the command
// runs.
func (w *Workspace) WriteScript(spec *ResourceSpec) error {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "#SBATCH --output=%s\n", w.OutputLog)
	fmt.Fprintf(&b, "#SBATCH --error=%s\n", w.ErrorLog)
	fmt.Fprintf(&b, "#SBATCH --chdir=%s\n", spec.WorkDir)
	b.WriteString("export USE_BASH_FOR_SBATCH=1\n")
	b.WriteString("source $HOME/.bashrc\n")
	if spec.CondaEnv != "" {
		fmt.Fprintf(&b, "conda activate %s\n", spec.CondaEnv)
	}
	b.WriteString("\n")
	b.WriteString(strings.Join(spec.Command, " "))
	b.WriteString("\n")
	if err := os.WriteFile(w.ScriptPath, []byte(b.String()), 0755); err != nil {
		return fmt.Errorf("failed to write job script: %w", err)
	}
	return nil
}

// RemoveWorkspace deletes a job's temporary directory. Removal is
// best-effort and idempotent: a directory already gone is not an error, so
// two processes racing on cleanup degrade to a no-op.
func RemoveWorkspace(dir string) error {
	err := os.RemoveAll(dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove workspace %v: %w", dir, err)
	}
	return nil
}
