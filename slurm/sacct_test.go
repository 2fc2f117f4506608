package slurm

import (
	"errors"
	"testing"

	"github.com/clemsonciti/slrun"
)

const sacctCompletedJSON = `{
  "jobs": [
    {
      "job_id": 123,
      "nodes": "node0042",
      "state": {"current": "COMPLETED", "reason": "None"},
      "exit_code": {
        "status": "SUCCESS",
        "return_code": {"set": true, "infinite": false, "number": 0}
      }
    }
  ],
  "warnings": [],
  "errors": []
}`

const sacctFailedOldJSON = `{
  "jobs": [
    {
      "job_id": 123,
      "nodes": "node0042",
      "state": {"current": ["FAILED"], "reason": "None"},
      "exit_code": {"status": ["ERROR"], "return_code": 17}
    }
  ]
}`

const sacctRunningYAML = `jobs:
- job_id: 123
  nodes: node0042
  state:
    current:
    - RUNNING
    reason: None
  exit_code:
    status:
    - PENDING
    return_code:
      set: false
      infinite: false
      number: 0
`

func TestParseSacctResponse(t *testing.T) {
	for _, tc := range []struct {
		name             string
		input            string
		mode             responseMode
		expectedStatus   slrun.Status
		expectedExit     int
		expectedHasExit  bool
		expectedNodeList string
		expectedErr      error
	}{
		{
			name:             "completed json",
			input:            sacctCompletedJSON,
			mode:             modeJSON,
			expectedStatus:   slrun.StatusCompleted,
			expectedExit:     0,
			expectedHasExit:  true,
			expectedNodeList: "node0042",
		},
		{
			// Older releases: array states and a bare-number return code.
			name:             "failed old json",
			input:            sacctFailedOldJSON,
			mode:             modeJSON,
			expectedStatus:   slrun.StatusFailed,
			expectedExit:     17,
			expectedHasExit:  true,
			expectedNodeList: "node0042",
		},
		{
			name:             "running yaml no exit code",
			input:            sacctRunningYAML,
			mode:             modeYAML,
			expectedStatus:   slrun.StatusRunning,
			expectedHasExit:  false,
			expectedNodeList: "node0042",
		},
		{
			name:        "no jobs",
			input:       `{"jobs":[]}`,
			mode:        modeJSON,
			expectedErr: errJobNotFound,
		},
	} {
		info, err := parseSacctResponse([]byte(tc.input), tc.mode)
		if tc.expectedErr != nil {
			if !errors.Is(err, tc.expectedErr) {
				t.Errorf("%v: expected error %v, got %v", tc.name, tc.expectedErr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v: unexpected error: %v", tc.name, err)
			continue
		}
		if info.Status != tc.expectedStatus {
			t.Errorf("%v: expected status %v, got %v", tc.name, tc.expectedStatus, info.Status)
		}
		if info.HasExitCode != tc.expectedHasExit {
			t.Errorf("%v: expected HasExitCode=%v, got %v", tc.name, tc.expectedHasExit, info.HasExitCode)
		}
		if tc.expectedHasExit && info.ExitCode != tc.expectedExit {
			t.Errorf("%v: expected exit code %v, got %v", tc.name, tc.expectedExit, info.ExitCode)
		}
		if info.NodeList != tc.expectedNodeList {
			t.Errorf("%v: expected nodes %q, got %q", tc.name, tc.expectedNodeList, info.NodeList)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	for _, tc := range []struct {
		input    string
		expected bool
	}{
		{"squeue: error: slurm_load_jobs error: Socket timed out on send/recv operation", true},
		{"ssh: connect to host login1: Connection refused", true},
		{"sbatch: error: Unable to contact slurm controller (connect failure)", true},
		{"sbatch: error: Invalid generic resource (gres) specification", false},
		{"scancel: error: Invalid job id specified", false},
	} {
		got := isRetryable(errors.New(tc.input))
		if got != tc.expected {
			t.Errorf("for input %q, expected %v, got %v", tc.input, tc.expected, got)
		}
	}
}
