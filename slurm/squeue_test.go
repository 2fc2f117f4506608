package slurm

import (
	"errors"
	"testing"

	"github.com/clemsonciti/slrun"
)

func TestParseSqueueResponse(t *testing.T) {
	for _, tc := range []struct {
		name             string
		input            string
		expectedStatus   slrun.Status
		expectedReason   string
		expectedNodeList string
		expectedErr      error
	}{
		{
			name: "pending string state",
			input: `{"jobs":[{"job_id":123,"job_state":"PENDING",
				"state_reason":"Priority","job_resources":{}}]}`,
			expectedStatus: slrun.StatusPending,
			expectedReason: "Priority",
		},
		{
			name: "running array state",
			input: `{"jobs":[{"job_id":123,"job_state":["RUNNING"],
				"state_reason":"None","job_resources":{"nodes":"node0042"}}]}`,
			expectedStatus:   slrun.StatusRunning,
			expectedNodeList: "node0042",
		},
		{
			name: "completing maps to running",
			input: `{"jobs":[{"job_id":123,"job_state":"COMPLETING",
				"job_resources":{"nodes":"node0042"}}]}`,
			expectedStatus:   slrun.StatusRunning,
			expectedNodeList: "node0042",
		},
		{
			name: "cancelled with suffix",
			input: `{"jobs":[{"job_id":123,"job_state":"CANCELLED by 1000",
				"job_resources":{}}]}`,
			expectedStatus: slrun.StatusCancelled,
		},
		{
			name:        "no jobs",
			input:       `{"jobs":[],"warnings":[],"errors":[]}`,
			expectedErr: errJobNotFound,
		},
		{
			name:           "unrecognized state",
			input:          `{"jobs":[{"job_id":123,"job_state":"SPECIAL_EXIT","job_resources":{}}]}`,
			expectedStatus: slrun.StatusUnknown,
		},
	} {
		info, err := parseSqueueResponse([]byte(tc.input))
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
		if info.Reason != tc.expectedReason {
			t.Errorf("%v: expected reason %q, got %q", tc.name, tc.expectedReason, info.Reason)
		}
		if info.NodeList != tc.expectedNodeList {
			t.Errorf("%v: expected nodes %q, got %q", tc.name, tc.expectedNodeList, info.NodeList)
		}
	}
}

func TestParseSqueueResponseBadJSON(t *testing.T) {
	_, err := parseSqueueResponse([]byte("slurm_load_jobs error"))
	if err == nil {
		t.Error("expected error for non-JSON input")
	}
}
