// Package config loads and resolves slrun's layered configuration:
// built-in defaults, the global config file, the project-local config
// file, an optional named profile, and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProjectFileName is the project-local config file, looked up in the
// current working directory.
const ProjectFileName = ".slrun.toml"

// Error describes a configuration failure: a missing profile or an
// unusable config file. Config errors are fatal and surfaced before any
// job state is created.
type Error struct {
	Path string // file involved, if any
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %v: %v", e.Path, e.Msg)
	}
	return "config: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Options is one sparse layer of settings. Only fields present in the
// source document are non-nil and participate in the merge.
type Options struct {
	Time          *string `toml:"time"`
	Mem           *string `toml:"mem"`
	Gres          *string `toml:"gres"`
	Nodelist      *string `toml:"nodelist"`
	Exclude       *string `toml:"exclude"`
	CondaEnv      *string `toml:"conda_env"`
	Timeout       *int    `toml:"timeout"`
	TimeoutCancel *bool   `toml:"timeout_cancel"`
	PollInterval  *int    `toml:"poll_interval"`
	SubmitHost    *string `toml:"submit_host"`
}

// Fields returns the keys set in this layer with their rendered values,
// in config-file order. Used by `slrun config show`.
func (o Options) Fields() [][2]string {
	var out [][2]string
	add := func(key, val string) { out = append(out, [2]string{key, val}) }
	if o.Time != nil {
		add("time", *o.Time)
	}
	if o.Mem != nil {
		add("mem", *o.Mem)
	}
	if o.Gres != nil {
		add("gres", *o.Gres)
	}
	if o.Nodelist != nil {
		add("nodelist", *o.Nodelist)
	}
	if o.Exclude != nil {
		add("exclude", *o.Exclude)
	}
	if o.CondaEnv != nil {
		add("conda_env", *o.CondaEnv)
	}
	if o.Timeout != nil {
		add("timeout", fmt.Sprintf("%d", *o.Timeout))
	}
	if o.TimeoutCancel != nil {
		add("timeout_cancel", fmt.Sprintf("%v", *o.TimeoutCancel))
	}
	if o.PollInterval != nil {
		add("poll_interval", fmt.Sprintf("%d", *o.PollInterval))
	}
	if o.SubmitHost != nil {
		add("submit_host", *o.SubmitHost)
	}
	return out
}

// File is one parsed config document: a [defaults] table plus named
// [profiles.<name>] tables.
type File struct {
	Defaults Options            `toml:"defaults"`
	Profiles map[string]Options `toml:"profiles"`
}

// GlobalPath returns the global config file location,
// ~/.slrun/config.toml.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, ".slrun", "config.toml"), nil
}

// Load parses one TOML config file. A missing file is not an error and
// yields (nil, nil); a present but unreadable or unparseable file is a
// *Error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Path: path, Msg: "could not read file", Err: err}
	}
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, &Error{Path: path, Msg: fmt.Sprintf("could not parse: %v", err), Err: err}
	}
	return &f, nil
}

// DefaultTemplate is written by `slrun config edit` when no global config
// exists yet.
const DefaultTemplate = `# slrun configuration file
[defaults]
# Default values for Slurm job parameters
time = "1-00:00:00"
mem = "64GB"
gres = "gpu:A6000:1"
timeout = 86400

# Optional profiles for different job types
[profiles.small]
time = "0-01:00:00"
mem = "16GB"
gres = "gpu:A6000:1"

[profiles.large]
time = "7-00:00:00"
mem = "64GB"
gres = "gpu:A100_40GB:4"
`
