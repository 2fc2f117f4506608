package main

import (
	"fmt"
	"os"
	"time"

	"github.com/clemsonciti/slrun"
	"github.com/clemsonciti/slrun/config"
	"github.com/clemsonciti/slrun/monitor"
	"github.com/spf13/cobra"
)

func newLaunchCmd() *cobra.Command {
	var (
		timeFlag      string
		memFlag       string
		gresFlag      string
		nodelistFlag  string
		excludeFlag   string
		condaFlag     string
		timeoutFlag   int
		timeoutCancel bool
		pollFlag      int
		submitHost    string
		profileFlag   string
	)

	cmd := &cobra.Command{
		Use:   "launch [flags] -- command [args...]",
		Short: "Submit a command as a Slurm job and stream its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Only flags the user actually set participate in the merge.
			var cli config.Options
			set := cmd.Flags().Changed
			if set("time") {
				cli.Time = &timeFlag
			}
			if set("mem") {
				cli.Mem = &memFlag
			}
			if set("gres") {
				cli.Gres = &gresFlag
			}
			if set("nodelist") {
				cli.Nodelist = &nodelistFlag
			}
			if set("exclude") {
				cli.Exclude = &excludeFlag
			}
			if set("conda-env") {
				cli.CondaEnv = &condaFlag
			}
			if set("timeout") {
				cli.Timeout = &timeoutFlag
			}
			if set("timeout-cancel") {
				cli.TimeoutCancel = &timeoutCancel
			}
			if set("poll-interval") {
				cli.PollInterval = &pollFlag
			}
			if set("submit-host") {
				cli.SubmitHost = &submitHost
			}
			return runLaunch(cmd, profileFlag, cli, args)
		},
	}

	// Everything after the first non-flag argument belongs to the user's
	// command, so `slrun launch python train.py --epochs 3` works without
	// a `--` separator.
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().StringVarP(&timeFlag, "time", "t", "", "Job time limit (e.g. 1-00:00:00).")
	cmd.Flags().StringVarP(&memFlag, "mem", "m", "", "Job memory request (e.g. 64GB).")
	cmd.Flags().StringVarP(&gresFlag, "gres", "g", "", "Generic resources (e.g. gpu:A6000:1).")
	cmd.Flags().StringVar(&nodelistFlag, "nodelist", "", "Comma-separated nodes to run on (unioned with config).")
	cmd.Flags().StringVar(&excludeFlag, "exclude", "", "Comma-separated nodes to avoid (unioned with config).")
	cmd.Flags().StringVarP(&condaFlag, "conda-env", "c", "", "Conda environment to activate before the command.")
	cmd.Flags().IntVar(&timeoutFlag, "timeout", 0, "Local timeout in seconds, measured from submission.")
	cmd.Flags().BoolVar(&timeoutCancel, "timeout-cancel", false, "Cancel the job when the local timeout elapses.")
	cmd.Flags().IntVar(&pollFlag, "poll-interval", 0, "Status poll interval in seconds.")
	cmd.Flags().StringVar(&submitHost, "submit-host", "", "Run scheduler commands over SSH on this host.")
	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "Config profile to apply.")
	return cmd
}

func runLaunch(cmd *cobra.Command, profileName string, cli config.Options, command []string) error {
	spec, err := resolveSpec(profileName, cli)
	if err != nil {
		return err
	}
	spec.Command = command
	spec.WorkDir, err = os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to find working directory: %w", err)
	}

	ws, err := slrun.NewWorkspace(spec.WorkDir)
	if err != nil {
		return err
	}
	if err := ws.WriteScript(spec); err != nil {
		_ = slrun.RemoveWorkspace(ws.Dir)
		return err
	}

	client, err := newSchedulerClient(spec.SubmitHost)
	if err != nil {
		_ = slrun.RemoveWorkspace(ws.Dir)
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	jobID, err := client.Submit(ctx, spec, ws.ScriptPath)
	if err != nil {
		_ = slrun.RemoveWorkspace(ws.Dir)
		return exitWithCode(3, err)
	}

	sess := &slrun.JobSession{
		JobID:      jobID,
		Command:    spec.Command,
		WorkDir:    spec.WorkDir,
		TempDir:    ws.Dir,
		OutputLog:  ws.OutputLog,
		ErrorLog:   ws.ErrorLog,
		CreatedAt:  time.Now(),
		LastStatus: slrun.StatusPending,
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	// The job is already submitted: if the session cannot be persisted,
	// stay attached and warn rather than orphan the job, but detaching
	// would lose it.
	if err := store.Save(sess); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save session (%v); do not detach, the job would be lost.\n", err)
	}

	m := &monitor.Monitor{
		Client:          client,
		Store:           store,
		Session:         sess,
		PollInterval:    spec.PollInterval,
		Timeout:         spec.Timeout,
		CancelOnTimeout: spec.CancelOnTimeout,
	}
	if rec := openHistory(); rec != nil {
		defer rec.Close()
		m.History = rec
		if err := rec.RecordSubmit(sess); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not record job history: %v\n", err)
		}
	}

	fmt.Fprintf(os.Stderr, "Submitted job %v, streaming output...\n", jobID)
	fmt.Fprintf(os.Stderr, "Press Ctrl+Z to detach, Ctrl+C to cancel.\n")

	res, err := runMonitor(ctx, m, false)
	if err != nil {
		return err
	}
	return resultExit(res)
}
