// Command slrun runs a command as a Slurm batch job while feeling like a
// local process: output streams live to the terminal, Ctrl+Z detaches
// without killing the job, and completed jobs clean up after themselves.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/clemsonciti/slrun/config"
	"github.com/spf13/cobra"
)

var (
	// These will get overridden by goreleaser.
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var debug bool

// exitError carries a specific process exit code up through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "slrun",
		Short:         "Run commands on Slurm like local processes",
		Version:       fmt.Sprintf("%v (commit %v, built %v)", buildVersion, buildCommit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging.")

	root.AddCommand(
		newLaunchCmd(),
		newAttachCmd(),
		newListCmd(),
		newCancelCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)
	return root
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		os.Exit(2)
	}
	os.Exit(1)
}
