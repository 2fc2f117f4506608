package main

import (
	"errors"
	"fmt"

	"github.com/clemsonciti/slrun"
	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobID>",
		Short: "Cancel a detached job and clean up its session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(cmd, args[0])
		},
	}
}

func runCancel(cmd *cobra.Command, jobID string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	sess, err := store.Load(jobID)
	if errors.Is(err, slrun.ErrSessionNotFound) {
		return fmt.Errorf("no session found for job %v", jobID)
	}
	if err != nil {
		return err
	}

	client, err := newClientFromConfig()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Cancel(cmd.Context(), jobID); err != nil {
		return err
	}

	if rec := openHistory(); rec != nil {
		defer rec.Close()
		if err := rec.RecordFinal(sess, slrun.StatusCancelled, 0); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not record job history: %v\n", err)
		}
	}
	if err := store.Delete(jobID); err != nil {
		return err
	}
	if err := slrun.RemoveWorkspace(sess.TempDir); err != nil {
		return err
	}
	fmt.Printf("Cancelled job %v.\n", jobID)
	return nil
}
