package slrun

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	sessions []*JobSession
}

func (s *stubStore) Save(sess *JobSession) error         { return errors.New("read-only") }
func (s *stubStore) Load(id string) (*JobSession, error) { return nil, ErrSessionNotFound }
func (s *stubStore) List() ([]*JobSession, error)        { return s.sessions, nil }
func (s *stubStore) Delete(id string) error              { return errors.New("read-only") }

type stubClient struct {
	mu       sync.Mutex
	statuses map[string]StatusInfo
	errs     map[string]error
	queried  []string
}

func (c *stubClient) Submit(ctx context.Context, spec *ResourceSpec, scriptPath string) (string, error) {
	return "", errors.New("not implemented")
}

func (c *stubClient) QueryStatus(ctx context.Context, jobID string) (StatusInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queried = append(c.queried, jobID)
	if err := c.errs[jobID]; err != nil {
		return StatusInfo{}, err
	}
	return c.statuses[jobID], nil
}

func (c *stubClient) Cancel(ctx context.Context, jobID string) error { return nil }

func TestRefreshSessions(t *testing.T) {
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	store := &stubStore{sessions: []*JobSession{
		{JobID: "2", CreatedAt: base.Add(time.Hour), LastStatus: StatusRunning},
		{JobID: "1", CreatedAt: base, LastStatus: StatusPending},
		{JobID: "3", CreatedAt: base.Add(2 * time.Hour), LastStatus: StatusRunning},
	}}
	client := &stubClient{
		statuses: map[string]StatusInfo{
			"1": {Status: StatusRunning},
			"2": {Status: StatusCompleted},
		},
		errs: map[string]error{
			"3": ErrSchedulerUnavailable,
		},
	}

	out, err := RefreshSessions(context.Background(), store, client, time.Second)
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Ordered by submission time.
	assert.Equal(t, "1", out[0].Session.JobID)
	assert.Equal(t, "2", out[1].Session.JobID)
	assert.Equal(t, "3", out[2].Session.JobID)

	assert.Equal(t, StatusRunning, out[0].Status)
	assert.True(t, out[0].Refreshed)
	assert.Equal(t, StatusCompleted, out[1].Status)
	assert.True(t, out[1].Refreshed)

	// A failed refresh falls back to the persisted status and is marked
	// stale; it never fails the whole listing.
	assert.Equal(t, StatusRunning, out[2].Status)
	assert.False(t, out[2].Refreshed)

	// Refresh never mutates the store: the stub errors on writes.
	assert.ElementsMatch(t, []string{"1", "2", "3"}, client.queried)
}

func TestRefreshSessionsEmpty(t *testing.T) {
	out, err := RefreshSessions(context.Background(), &stubStore{}, &stubClient{}, time.Second)
	require.NoError(t, err)
	assert.Empty(t, out)
}
