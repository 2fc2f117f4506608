// Package session persists job sessions as one JSON record per job id
// under a user-scoped directory. Writes are atomic (write a temp file,
// then rename over the target) so a concurrent list never observes a
// partial record.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/clemsonciti/slrun"
)

// FileStore implements slrun.SessionStore on a directory of JSON files.
type FileStore struct {
	dir string
}

// DefaultDir returns the session directory, ~/.slrun/sessions.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, ".slrun", "sessions"), nil
}

// NewFileStore opens a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory %v: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

// Save writes the session record with an atomic replace.
func (s *FileStore) Save(sess *slrun.JobSession) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %v: %w", sess.JobID, err)
	}
	tmp, err := os.CreateTemp(s.dir, sess.JobID+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session %v: %w", sess.JobID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close session file for %v: %w", sess.JobID, err)
	}
	if err := os.Rename(tmp.Name(), s.path(sess.JobID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace session %v: %w", sess.JobID, err)
	}
	return nil
}

// Load reads one session, returning slrun.ErrSessionNotFound when no
// record exists for jobID.
func (s *FileStore) Load(jobID string) (*slrun.JobSession, error) {
	data, err := os.ReadFile(s.path(jobID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, slrun.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %v: %w", jobID, err)
	}
	var sess slrun.JobSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %v: %w", jobID, err)
	}
	return &sess, nil
}

// List returns every readable session record. Unreadable entries are
// skipped so one corrupt or foreign file cannot break the listing.
func (s *FileStore) List() ([]*slrun.JobSession, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory %v: %w", s.dir, err)
	}
	var out []*slrun.JobSession
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		sess, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			slog.Debug("skipping unreadable session file", "file", name, "err", err)
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

// Delete removes the session record. Deleting an absent record is a
// no-op.
func (s *FileStore) Delete(jobID string) error {
	err := os.Remove(s.path(jobID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session %v: %w", jobID, err)
	}
	return nil
}
