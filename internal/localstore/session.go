package localstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sessions tracks which client processes are running against one state store.
// Each session holds an advisory lock on its own file for as long as it lives,
// so a crashed process releases its claim on pending batches automatically.
type Sessions struct {
	dir    string
	logger zerolog.Logger
}

// NewSessions keeps lock files next to the state store at statePath.
func NewSessions(statePath string, logger zerolog.Logger) (*Sessions, error) {
	statePath = strings.TrimSpace(statePath)
	if statePath == "" {
		return nil, errors.New("localstore: path is required")
	}
	dir := statePath + ".sessions"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localstore: ensure session directory: %w", err)
	}
	return &Sessions{dir: dir, logger: logger}, nil
}

// Session is one live holder of the session lock.
type Session struct {
	ID   string
	lock *flock.Flock
}

// Acquire starts a new session under a fresh id.
func (s *Sessions) Acquire() (*Session, error) {
	id := uuid.NewString()
	lock := flock.New(s.lockPath(id))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("localstore: session lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("localstore: session %s already locked", id)
	}
	return &Session{ID: id, lock: lock}, nil
}

// Alive reports whether the session id still holds its lock. Stale lock
// files are removed once found unlocked.
func (s *Sessions) Alive(id string) bool {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return false
	}
	path := s.lockPath(id)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		s.logger.Warn().Err(err).Str("session", id).Msg("localstore: cannot probe session lock, assuming alive")
		return true
	}
	if !ok {
		return true
	}
	_ = os.Remove(path)
	_ = lock.Unlock()
	return false
}

func (s *Sessions) lockPath(id string) string {
	return filepath.Join(s.dir, id+".lock")
}

// Release ends the session. Its pending batches become claimable.
func (s *Session) Release() error {
	if s == nil || s.lock == nil {
		return nil
	}
	path := s.lock.Path()
	_ = os.Remove(path)
	return s.lock.Unlock()
}
