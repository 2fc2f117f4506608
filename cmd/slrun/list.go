package main

import (
	"fmt"
	"time"

	"github.com/clemsonciti/slrun"
	"github.com/spf13/cobra"
)

const listQueryTimeout = 5 * time.Second

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List detached jobs with a refreshed status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd)
		},
	}
}

func runList(cmd *cobra.Command) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	client, err := newClientFromConfig()
	if err != nil {
		return err
	}
	defer client.Close()

	statuses, err := slrun.RefreshSessions(cmd.Context(), store, client, listQueryTimeout)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Println("No detached jobs found.")
		return nil
	}

	fmt.Printf("%-12v%-12v%-22v%v\n", "JOB ID", "STATUS", "DETACHED", "COMMAND")
	for _, s := range statuses {
		status := string(s.Status)
		if !s.Refreshed {
			// Last persisted status; the scheduler did not answer.
			status += "?"
		}
		detached := "-"
		if s.Session.DetachedAt != nil {
			detached = s.Session.DetachedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-12v%-12v%-22v%v\n",
			s.Session.JobID, status, detached,
			truncate(commandString(s.Session.Command), 60))
	}
	return nil
}
