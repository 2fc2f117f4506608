package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/clemsonciti/slrun"
	"github.com/clemsonciti/slrun/config"
	"github.com/clemsonciti/slrun/monitor"
	"github.com/clemsonciti/slrun/recorder"
	"github.com/clemsonciti/slrun/session"
	"github.com/clemsonciti/slrun/slurm"
)

// loadConfigFiles reads the global and project config documents. Either
// may be nil when the file does not exist.
func loadConfigFiles() (global, project *config.File, err error) {
	globalPath, err := config.GlobalPath()
	if err != nil {
		return nil, nil, err
	}
	global, err = config.Load(globalPath)
	if err != nil {
		return nil, nil, err
	}
	project, err = config.Load(config.ProjectFileName)
	if err != nil {
		return nil, nil, err
	}
	return global, project, nil
}

func resolveSpec(profileName string, cli config.Options) (*slrun.ResourceSpec, error) {
	global, project, err := loadConfigFiles()
	if err != nil {
		return nil, err
	}
	return config.Resolve(global, project, profileName, cli)
}

func openStore() (*session.FileStore, error) {
	dir, err := session.DefaultDir()
	if err != nil {
		return nil, err
	}
	return session.NewFileStore(dir)
}

func newSchedulerClient(submitHost string) (*slurm.Client, error) {
	return slurm.NewClient(slurm.Options{SubmitHost: submitHost})
}

// newClientFromConfig builds a scheduler client using the configured
// submit_host, for subcommands that take no launch flags.
func newClientFromConfig() (*slurm.Client, error) {
	spec, err := resolveSpec("", config.Options{})
	if err != nil {
		return nil, err
	}
	return newSchedulerClient(spec.SubmitHost)
}

// openHistory opens the history database. History is best-effort: a
// failure to open it is logged and nil is returned, and callers skip
// recording.
func openHistory() *recorder.Recorder {
	path, err := recorder.DefaultPath()
	if err != nil {
		slog.Warn("job history disabled", "err", err)
		return nil
	}
	rec, err := recorder.New(path)
	if err != nil {
		slog.Warn("job history disabled", "path", path, "err", err)
		return nil
	}
	return rec
}

// runMonitor runs the monitor loop with terminal signals translated into
// monitor events: Ctrl+Z (SIGTSTP) detaches, Ctrl+C (SIGINT) or SIGTERM
// cancels. Signals never os.Exit mid-monitor; the loop always returns so
// cleanup and exit-code mapping run normally.
func runMonitor(ctx context.Context, m *monitor.Monitor, resume bool) (*monitor.Result, error) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTSTP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	events := make(chan monitor.Signal, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				ev := monitor.SignalCancel
				if sig == syscall.SIGTSTP {
					ev = monitor.SignalDetach
				}
				select {
				case events <- ev:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	return m.Run(ctx, events, resume)
}

// resultExit maps a monitor result to the process exit contract: 0 on
// clean completion or detach, the job's own exit code on failure, 124
// when cancel-on-timeout fired.
func resultExit(res *monitor.Result) error {
	if res.TimedOut {
		return exitWithCode(124, errTimedOut)
	}
	if res.Status == slrun.StatusFailed {
		code := res.ExitCode
		if code == 0 {
			code = 1
		}
		return exitWithCode(code, errJobFailed)
	}
	return nil
}

var (
	errTimedOut  = errors.New("job cancelled after local timeout")
	errJobFailed = errors.New("job failed")
)

// truncate shortens s for single-line table display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func commandString(cmd []string) string {
	return strings.Join(cmd, " ")
}
