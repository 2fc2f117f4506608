package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clemsonciti/slrun/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit slrun configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print global, project, and effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigShow()
			},
		},
		&cobra.Command{
			Use:   "edit",
			Short: "Open the global config file in $EDITOR",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigEdit()
			},
		},
	)
	return cmd
}

func runConfigShow() error {
	globalPath, err := config.GlobalPath()
	if err != nil {
		return err
	}
	global, err := config.Load(globalPath)
	if err != nil {
		return err
	}
	project, err := config.Load(config.ProjectFileName)
	if err != nil {
		return err
	}

	printFile("Global config ("+globalPath+")", global)
	fmt.Println()
	printFile("Project config ("+config.ProjectFileName+")", project)
	fmt.Println()

	spec, err := config.Resolve(global, project, "", config.Options{})
	if err != nil {
		return err
	}
	fmt.Println("Effective defaults (no profile, no flags):")
	fmt.Printf("  %-16v%v\n", "time", spec.Time)
	fmt.Printf("  %-16v%v\n", "mem", spec.Mem)
	fmt.Printf("  %-16v%v\n", "gres", spec.Gres)
	if len(spec.Nodelist) > 0 {
		fmt.Printf("  %-16v%v\n", "nodelist", strings.Join(spec.Nodelist, ","))
	}
	if len(spec.Exclude) > 0 {
		fmt.Printf("  %-16v%v\n", "exclude", strings.Join(spec.Exclude, ","))
	}
	if spec.CondaEnv != "" {
		fmt.Printf("  %-16v%v\n", "conda_env", spec.CondaEnv)
	}
	if spec.SubmitHost != "" {
		fmt.Printf("  %-16v%v\n", "submit_host", spec.SubmitHost)
	}
	fmt.Printf("  %-16v%v\n", "timeout", spec.Timeout)
	fmt.Printf("  %-16v%v\n", "timeout_cancel", spec.CancelOnTimeout)
	fmt.Printf("  %-16v%v\n", "poll_interval", spec.PollInterval)
	return nil
}

func printFile(title string, f *config.File) {
	fmt.Println(title + ":")
	if f == nil {
		fmt.Println("  (not present)")
		return
	}
	fmt.Println("  [defaults]")
	printOptions(f.Defaults, "    ")
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  [profiles.%v]\n", name)
		printOptions(f.Profiles[name], "    ")
	}
}

func printOptions(o config.Options, indent string) {
	fields := o.Fields()
	if len(fields) == 0 {
		fmt.Println(indent + "(empty)")
		return
	}
	for _, kv := range fields {
		fmt.Printf("%v%-16v%v\n", indent, kv[0], kv[1])
	}
}

func runConfigEdit() error {
	path, err := config.GlobalPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.DefaultTemplate), 0644); err != nil {
			return fmt.Errorf("failed to write config template: %w", err)
		}
		fmt.Printf("Created %v with defaults.\n", path)
	} else if err != nil {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vim"
	}
	edit := exec.Command(editor, path)
	edit.Stdin = os.Stdin
	edit.Stdout = os.Stdout
	edit.Stderr = os.Stderr
	if err := edit.Run(); err != nil {
		return fmt.Errorf("editor %v failed: %w", editor, err)
	}

	// Validate the result so a syntax error is caught now, not at the
	// next launch.
	if _, err := config.Load(path); err != nil {
		return err
	}
	fmt.Println("Config OK.")
	return nil
}
