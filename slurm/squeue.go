package slurm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/clemsonciti/slrun"
)

type squeueResponse struct {
	Jobs     []squeueJob `json:"jobs"`
	Warnings []any       `json:"warnings"`
	Errors   []any       `json:"errors"`
}

type squeueJobResources struct {
	Nodes string `json:"nodes"`
}

type squeueJob struct {
	JobID        int                `json:"job_id"`
	JobStateRaw  json.RawMessage    `json:"job_state"`
	StateReason  string             `json:"state_reason"`
	JobResources squeueJobResources `json:"job_resources"`
}

// jobState handles both serializations Slurm has used for job_state: a
// plain string in older releases and a one-element array in newer ones.
func (j *squeueJob) jobState() string {
	var stringState string
	if json.Unmarshal(j.JobStateRaw, &stringState) == nil {
		return stringState
	}
	var sliceState []string
	if json.Unmarshal(j.JobStateRaw, &sliceState) == nil && len(sliceState) > 0 {
		return sliceState[0]
	}
	return "UNKNOWN"
}

func (c *Client) squeueStatus(ctx context.Context, jobID string) (slrun.StatusInfo, error) {
	slog.Debug("querying status", "jobID", jobID, "method", "squeue")
	out, err := c.runRetry(ctx, "squeue", "--job", jobID, "--json")
	if err != nil {
		return slrun.StatusInfo{}, err
	}
	return parseSqueueResponse(out)
}

func parseSqueueResponse(data []byte) (slrun.StatusInfo, error) {
	var parsed squeueResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return slrun.StatusInfo{}, fmt.Errorf("failed to parse squeue response: %w", err)
	}
	if len(parsed.Jobs) == 0 {
		return slrun.StatusInfo{}, errJobNotFound
	}
	j := parsed.Jobs[0]
	info := slrun.StatusInfo{
		Status:   slrun.NormalizeStatus(j.jobState()),
		NodeList: j.JobResources.Nodes,
	}
	// "None" is squeue's way of saying no reason.
	if j.StateReason != "" && j.StateReason != "None" {
		info.Reason = j.StateReason
	}
	return info, nil
}
