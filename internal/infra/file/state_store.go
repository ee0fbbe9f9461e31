// Package file persists the quiz state as a single JSON document on disk.
// Writes go through a temp file and rename so a crashed save never leaves a
// half-written state behind.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"livequiz-service/internal/domain"
)

type StateStore struct {
	path string
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

func (s *StateStore) Load() (domain.PersistedState, bool, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.PersistedState{}, false, nil
	}
	if err != nil {
		return domain.PersistedState{}, false, fmt.Errorf("read state file: %w", err)
	}

	var p domain.PersistedState
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.PersistedState{}, false, fmt.Errorf("decode state file: %w", err)
	}
	return p, true, nil
}

func (s *StateStore) Save(p domain.PersistedState) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
