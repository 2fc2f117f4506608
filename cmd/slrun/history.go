package main

import (
	"fmt"

	"github.com/clemsonciti/slrun/recorder"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finished jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show.")
	return cmd
}

func runHistory(limit int) error {
	path, err := recorder.DefaultPath()
	if err != nil {
		return err
	}
	rec, err := recorder.New(path)
	if err != nil {
		return err
	}
	defer rec.Close()

	entries, err := rec.Recent(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No job history yet.")
		return nil
	}

	fmt.Printf("%-12v%-12v%-6v%-22v%v\n", "JOB ID", "STATUS", "EXIT", "SUBMITTED", "COMMAND")
	for _, e := range entries {
		fmt.Printf("%-12v%-12v%-6v%-22v%v\n",
			e.JobID, e.Status, e.ExitCode,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			truncate(commandString(e.Command), 60))
	}
	return nil
}
