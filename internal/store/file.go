package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"QuoteSentinel/internal/alert"
	"QuoteSentinel/internal/model"
)

// fileState is the on-disk document of FileStore.
type fileState struct {
	Alerts    []model.Alert `json:"alerts"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// FileStore keeps alerts in a JSON file, rewritten on every mutation.
type FileStore struct {
	mu       sync.Mutex
	state    *fileState
	filePath string
}

// NewFileStore creates a FileStore, loading existing state from disk.
func NewFileStore(filePath string) (*FileStore, error) {
	if err := ensureParentDir(filePath); err != nil {
		return nil, err
	}
	state, err := loadState(filePath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filePath, err)
	}
	return &FileStore{state: state, filePath: filePath}, nil
}

// ensureParentDir creates the directory holding path. In-memory and URI
// style SQLite names are left alone.
func ensureParentDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// loadState reads the state file. A missing file yields an empty state.
func loadState(filePath string) (*fileState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileState{}, nil
		}
		return nil, err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// save writes the state atomically via a temp file.
func (s *FileStore) save() error {
	s.state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}

func (s *FileStore) index(id string) int {
	for i, a := range s.state.Alerts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *FileStore) Create(_ context.Context, a model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(a.ID) >= 0 {
		return fmt.Errorf("alert %s already exists", a.ID)
	}
	s.state.Alerts = append(s.state.Alerts, a)
	if err := s.save(); err != nil {
		s.state.Alerts = s.state.Alerts[:len(s.state.Alerts)-1]
		return fmt.Errorf("save alerts: %w", err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Alert, len(s.state.Alerts))
	copy(out, s.state.Alerts)
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return alert.ErrNotFound
	}
	prev := s.state.Alerts
	s.state.Alerts = append(prev[:i:i], prev[i+1:]...)
	if err := s.save(); err != nil {
		s.state.Alerts = prev
		return fmt.Errorf("save alerts: %w", err)
	}
	return nil
}

// update applies fn to the alert with id and saves, undoing fn on failure.
func (s *FileStore) update(id string, fn func(a *model.Alert)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return alert.ErrNotFound
	}
	before := s.state.Alerts[i]
	fn(&s.state.Alerts[i])
	if err := s.save(); err != nil {
		s.state.Alerts[i] = before
		return fmt.Errorf("save alerts: %w", err)
	}
	return nil
}

func (s *FileStore) SetEnabled(_ context.Context, id string, enabled bool) error {
	return s.update(id, func(a *model.Alert) { a.Enabled = enabled })
}

func (s *FileStore) MarkTriggered(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(a *model.Alert) {
		if a.Triggered {
			return
		}
		a.Triggered = true
		a.TriggeredAt = &at
	})
}

var _ alert.Store = (*FileStore)(nil)
