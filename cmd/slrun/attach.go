package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/clemsonciti/slrun"
	"github.com/clemsonciti/slrun/monitor"
	"github.com/spf13/cobra"
)

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <jobID>",
		Short: "Reattach to a detached job and resume streaming",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttach(cmd, args[0])
		},
	}
}

func runAttach(cmd *cobra.Command, jobID string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	sess, err := store.Load(jobID)
	if errors.Is(err, slrun.ErrSessionNotFound) {
		return fmt.Errorf("no session found for job %v; it may have completed and been cleaned up", jobID)
	}
	if err != nil {
		return err
	}

	// A session whose workspace is gone cannot be streamed; drop the
	// stale record instead of attaching to nothing.
	if _, statErr := os.Stat(sess.OutputLog); statErr != nil {
		if delErr := store.Delete(jobID); delErr != nil {
			return delErr
		}
		return fmt.Errorf("session for job %v is stale (output files are gone); removed its record", jobID)
	}

	sess.DetachedAt = nil
	if err := store.Save(sess); err != nil {
		return fmt.Errorf("failed to mark session attached: %w", err)
	}

	client, err := newClientFromConfig()
	if err != nil {
		return err
	}
	defer client.Close()

	m := &monitor.Monitor{
		Client:  client,
		Store:   store,
		Session: sess,
	}
	if rec := openHistory(); rec != nil {
		defer rec.Close()
		m.History = rec
	}

	fmt.Fprintf(os.Stderr, "Reattaching to job %v...\n", jobID)
	fmt.Fprintf(os.Stderr, "Press Ctrl+Z to detach, Ctrl+C to cancel.\n")

	res, err := runMonitor(cmd.Context(), m, true)
	if err != nil {
		return err
	}
	return resultExit(res)
}
