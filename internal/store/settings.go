package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Ripplz/QuakeReport/internal/query"
)

const (
	DefaultMinMagnitude = "6"
	DefaultOrderBy      = "magnitude"
)

// Settings are the user's feed preferences.
type Settings struct {
	MinMagnitude string `json:"min_magnitude"`
	OrderBy      string `json:"order_by"`
}

func DefaultSettings() Settings {
	return Settings{MinMagnitude: DefaultMinMagnitude, OrderBy: DefaultOrderBy}
}

func (s Settings) Validate() error {
	if err := query.ValidateMinMagnitude(s.MinMagnitude); err != nil {
		return err
	}
	return query.ValidateOrderBy(s.OrderBy)
}

// LoadSettings returns the stored settings, or defaults when the file does not exist.
// Empty fields fall back to the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	var stored Settings
	if err := json.Unmarshal(b, &stored); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if v := strings.TrimSpace(stored.MinMagnitude); v != "" {
		s.MinMagnitude = v
	}
	if v := strings.TrimSpace(stored.OrderBy); v != "" {
		s.OrderBy = v
	}
	return s, s.Validate()
}

// SaveSettings validates s and replaces the file at path atomically.
func SaveSettings(path string, s Settings) error {
	s.MinMagnitude = strings.TrimSpace(s.MinMagnitude)
	s.OrderBy = strings.TrimSpace(s.OrderBy)
	if err := s.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", " ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// SettingsStore serializes access to one settings file. With an empty path the
// settings live in memory only.
type SettingsStore struct {
	mu      sync.Mutex
	path    string
	current Settings
}

// OpenSettings loads path, falling back to fallback for fields the file does not set.
func OpenSettings(path string, fallback Settings) (*SettingsStore, error) {
	st := &SettingsStore{path: path, current: fallback}
	if fallback.MinMagnitude == "" {
		st.current.MinMagnitude = DefaultMinMagnitude
	}
	if fallback.OrderBy == "" {
		st.current.OrderBy = DefaultOrderBy
	}
	if err := st.current.Validate(); err != nil {
		return nil, err
	}
	if path == "" {
		return st, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	s, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}
	st.current = s
	return st, nil
}

func (st *SettingsStore) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

func (st *SettingsStore) Put(s Settings) error {
	s.MinMagnitude = strings.TrimSpace(s.MinMagnitude)
	s.OrderBy = strings.TrimSpace(s.OrderBy)
	if err := s.Validate(); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.path != "" {
		if err := SaveSettings(st.path, s); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	st.current = s
	return nil
}
