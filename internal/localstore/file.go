package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// FileKV keeps every key in one JSON object on disk. An in-process mutex and an
// advisory file lock serialize read-modify-write cycles, so several polling
// goroutines or several CLI processes can share the file.
type FileKV struct {
	path   string
	lock   *flock.Flock
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewFileKV opens (or lazily creates) the state file at path.
func NewFileKV(path string, logger zerolog.Logger) (*FileKV, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("localstore: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("localstore: ensure directory: %w", err)
	}
	return &FileKV{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}, nil
}

// Path returns the state file location.
func (s *FileKV) Path() string { return s.path }

func (s *FileKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("localstore: shared lock: %w", err)
	}
	defer s.unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	value, ok := doc[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (s *FileKV) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("localstore: exclusive lock: %w", err)
	}
	defer s.unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	var current []byte
	if value, ok := doc[key]; ok {
		current = value
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		delete(doc, key)
	} else {
		if !json.Valid(next) {
			return fmt.Errorf("localstore: value for %q is not valid json", key)
		}
		doc[key] = json.RawMessage(next)
	}
	return s.write(doc)
}

func (s *FileKV) Close() error {
	return s.lock.Close()
}

func (s *FileKV) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("localstore: unlock failed")
	}
}

// load reads the whole document. A missing or unreadable document is treated
// as empty.
func (s *FileKV) load() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("localstore: read state: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("localstore: state file corrupt, starting empty")
		return map[string]json.RawMessage{}, nil
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	return doc, nil
}

func (s *FileKV) write(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("localstore: encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*")
	if err != nil {
		return fmt.Errorf("localstore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("localstore: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("localstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("localstore: replace state: %w", err)
	}
	return nil
}

var _ KV = (*FileKV)(nil)
