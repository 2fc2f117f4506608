package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clemsonciti/slrun"
)

// Built-in defaults, the lowest-precedence layer.
const (
	DefaultTime         = "1-00:00:00"
	DefaultMem          = "64GB"
	DefaultGres         = "gpu:A6000:1"
	DefaultTimeout      = 24 * time.Hour
	DefaultPollInterval = time.Second
)

// Resolve merges the config layers into one effective resource spec.
// Precedence, lowest to highest: built-in defaults < global [defaults] <
// global profile < project [defaults] < project profile < CLI overrides.
// A scalar key is wholly replaced by the last layer that sets it;
// nodelist and exclude are parsed into node sets and unioned across every
// layer that sets them.
func Resolve(global, project *File, profileName string, cli Options) (*slrun.ResourceSpec, error) {
	if profileName != "" && !hasProfile(global, profileName) && !hasProfile(project, profileName) {
		return nil, &Error{Msg: fmt.Sprintf("profile %q not found in global or project config", profileName)}
	}

	var layers []Options
	if global != nil {
		layers = append(layers, global.Defaults)
		if p, ok := profile(global, profileName); ok {
			layers = append(layers, p)
		}
	}
	if project != nil {
		layers = append(layers, project.Defaults)
		if p, ok := profile(project, profileName); ok {
			layers = append(layers, p)
		}
	}
	layers = append(layers, cli)

	spec := slrun.ResourceSpec{
		Time:         DefaultTime,
		Mem:          DefaultMem,
		Gres:         DefaultGres,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
	}
	nodelist := make(map[string]struct{})
	exclude := make(map[string]struct{})
	for _, l := range layers {
		if l.Time != nil {
			spec.Time = *l.Time
		}
		if l.Mem != nil {
			spec.Mem = *l.Mem
		}
		if l.Gres != nil {
			spec.Gres = *l.Gres
		}
		if l.CondaEnv != nil {
			spec.CondaEnv = *l.CondaEnv
		}
		if l.SubmitHost != nil {
			spec.SubmitHost = *l.SubmitHost
		}
		if l.Timeout != nil {
			spec.Timeout = time.Duration(*l.Timeout) * time.Second
		}
		if l.TimeoutCancel != nil {
			spec.CancelOnTimeout = *l.TimeoutCancel
		}
		if l.PollInterval != nil {
			spec.PollInterval = time.Duration(*l.PollInterval) * time.Second
		}
		addNodes(nodelist, l.Nodelist)
		addNodes(exclude, l.Exclude)
	}
	spec.Nodelist = sortedNodes(nodelist)
	spec.Exclude = sortedNodes(exclude)
	return &spec, nil
}

func hasProfile(f *File, name string) bool {
	_, ok := profile(f, name)
	return ok
}

func profile(f *File, name string) (Options, bool) {
	if f == nil || name == "" {
		return Options{}, false
	}
	p, ok := f.Profiles[name]
	return p, ok
}

// addNodes parses a comma-separated node list into the set.
func addNodes(set map[string]struct{}, v *string) {
	if v == nil {
		return
	}
	for _, n := range strings.Split(*v, ",") {
		n = strings.TrimSpace(n)
		if n != "" {
			set[n] = struct{}{}
		}
	}
}

func sortedNodes(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
