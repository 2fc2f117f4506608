package slurm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clemsonciti/slrun"
	"gopkg.in/yaml.v3"
)

type sacctResponse struct {
	Jobs     []sacctJob `json:"jobs" yaml:"jobs"`
	Warnings []any      `json:"warnings" yaml:"warnings"`
	Errors   []any      `json:"errors" yaml:"errors"`
}

type sacctJobState struct {
	Current jobStatus `json:"current" yaml:"current"`
	Reason  string    `json:"reason" yaml:"reason"`
}

type sacctJobExitCode struct {
	Status     jobStatus     `json:"status" yaml:"status"`
	ReturnCode optionalValue `json:"return_code" yaml:"return_code"`
}

type sacctJob struct {
	JobID    int              `json:"job_id" yaml:"job_id"`
	Nodes    string           `json:"nodes" yaml:"nodes"`
	State    sacctJobState    `json:"state" yaml:"state"`
	ExitCode sacctJobExitCode `json:"exit_code" yaml:"exit_code"`
}

// jobStatus handles both serializations Slurm has used for job states: a
// plain string in older releases and a one-element array in newer ones.
type jobStatus string

func (s *jobStatus) UnmarshalYAML(n *yaml.Node) error {
	var stringState string
	if n.Decode(&stringState) == nil {
		*s = jobStatus(stringState)
		return nil
	}
	var sliceState []string
	if err := n.Decode(&sliceState); err != nil {
		return err
	}
	if len(sliceState) == 0 {
		return errors.New("empty job state list")
	}
	*s = jobStatus(sliceState[0])
	return nil
}

func (s *jobStatus) UnmarshalJSON(b []byte) error {
	var stringState string
	if json.Unmarshal(b, &stringState) == nil {
		*s = jobStatus(stringState)
		return nil
	}
	var sliceState []string
	if err := json.Unmarshal(b, &sliceState); err != nil {
		return err
	}
	if len(sliceState) == 0 {
		return errors.New("empty job state list")
	}
	*s = jobStatus(sliceState[0])
	return nil
}

// optionalValue is Slurm's {set, infinite, number} wrapper, which older
// releases serialize as a bare number.
type optionalValue struct {
	set      bool
	infinite bool
	number   int64
}

type optionalValueWire struct {
	Set      bool  `json:"set" yaml:"set"`
	Infinite bool  `json:"infinite" yaml:"infinite"`
	Number   int64 `json:"number" yaml:"number"`
}

func (v *optionalValue) UnmarshalJSON(b []byte) error {
	var intVal int64
	if json.Unmarshal(b, &intVal) == nil {
		v.set = true
		v.number = intVal
		return nil
	}
	var objVal optionalValueWire
	if err := json.Unmarshal(b, &objVal); err != nil {
		return err
	}
	v.set = objVal.Set
	v.infinite = objVal.Infinite
	v.number = objVal.Number
	return nil
}

func (v *optionalValue) UnmarshalYAML(n *yaml.Node) error {
	var intVal int64
	if n.Decode(&intVal) == nil {
		v.set = true
		v.number = intVal
		return nil
	}
	var objVal optionalValueWire
	if err := n.Decode(&objVal); err != nil {
		return err
	}
	v.set = objVal.Set
	v.infinite = objVal.Infinite
	v.number = objVal.Number
	return nil
}

func (c *Client) sacctStatus(ctx context.Context, jobID string) (slrun.StatusInfo, error) {
	slog.Debug("querying status", "jobID", jobID, "method", "sacct", "mode", c.sacctMode)
	flag := "--json"
	if c.sacctMode == modeYAML {
		flag = "--yaml"
	}
	out, err := c.runRetry(ctx, "sacct", "--job", jobID, flag)
	if err != nil && c.sacctMode == modeJSON && !errors.Is(err, slrun.ErrSchedulerUnavailable) {
		// Older sacct builds have no JSON serializer; switch to YAML for
		// the rest of this process.
		slog.Debug("sacct --json failed, falling back to --yaml", "err", err)
		c.sacctMode = modeYAML
		out, err = c.runRetry(ctx, "sacct", "--job", jobID, "--yaml")
	}
	if err != nil {
		return slrun.StatusInfo{}, err
	}
	return parseSacctResponse(out, c.sacctMode)
}

func parseSacctResponse(data []byte, mode responseMode) (slrun.StatusInfo, error) {
	var parsed sacctResponse
	var err error
	if mode == modeJSON {
		err = json.Unmarshal(data, &parsed)
	} else {
		err = yaml.Unmarshal(data, &parsed)
	}
	if err != nil {
		return slrun.StatusInfo{}, fmt.Errorf("failed to parse sacct response: %w", err)
	}
	if len(parsed.Jobs) == 0 {
		return slrun.StatusInfo{}, errJobNotFound
	}
	j := parsed.Jobs[0]
	info := slrun.StatusInfo{
		Status:   slrun.NormalizeStatus(string(j.State.Current)),
		Reason:   j.State.Reason,
		NodeList: j.Nodes,
	}
	if info.Status.IsTerminal() && j.ExitCode.ReturnCode.set {
		info.ExitCode = int(j.ExitCode.ReturnCode.number)
		info.HasExitCode = true
	}
	return info, nil
}
