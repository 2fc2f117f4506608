package slrun

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// SessionStatus pairs a persisted session with a freshly queried status
// for display.
type SessionStatus struct {
	Session *JobSession
	Status  Status
	// Refreshed is false when the status query failed and Status is the
	// last persisted one.
	Refreshed bool
}

// RefreshSessions loads every persisted session and refreshes its status
// from the scheduler, bounding each query with perCallTimeout so one
// unreachable job cannot stall the listing of the others. It never writes
// to the store and never triggers cleanup; cleanup belongs to the monitor
// loop alone. Results are ordered by submission time.
func RefreshSessions(ctx context.Context, store SessionStore, client SchedulerClient, perCallTimeout time.Duration) ([]SessionStatus, error) {
	sessions, err := store.List()
	if err != nil {
		return nil, err
	}
	out := make([]SessionStatus, len(sessions))
	var wg sync.WaitGroup
	wg.Add(len(sessions))
	for i, s := range sessions {
		go func(i int, s *JobSession) {
			defer wg.Done()
			qCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
			defer cancel()
			info, err := client.QueryStatus(qCtx, s.JobID)
			if err != nil {
				slog.Debug("status refresh failed", "jobID", s.JobID, "err", err)
				out[i] = SessionStatus{Session: s, Status: s.LastStatus}
				return
			}
			out[i] = SessionStatus{Session: s, Status: info.Status, Refreshed: true}
		}(i, s)
	}
	wg.Wait()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Session.CreatedAt.Before(out[j].Session.CreatedAt)
	})
	return out, nil
}
