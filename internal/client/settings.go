package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// BlurSettings lists the display flags the settings surface persists. The
// agent stores them verbatim; rendering is the UI layer's concern.
var BlurSettings = []string{
	"blur_dashboard_addresses",
	"blur_admin_recaptcha",
	"blur_admin_api",
	"blur_admin_databases",
	"blur_admin_users",
	"blur_admin_servers",
	"blur_admin_user_view",
}

// state is the on-disk shape of the agent's local state.
type state struct {
	LicenseKey string            `json:"license_key,omitempty"`
	Settings   map[string]string `json:"settings,omitempty"`
}

// SettingsStore persists the stored license key and display flags in a local
// JSON file. The stored key is only a cache of which key to check, never of
// its validity.
type SettingsStore struct {
	path string
	mu   sync.Mutex
}

// NewSettingsStore creates a store backed by the given file path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// LicenseKey returns the stored license key, or empty when none is stored.
func (s *SettingsStore) LicenseKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return "", err
	}
	return st.LicenseKey, nil
}

// SetLicenseKey stores the license key.
func (s *SettingsStore) SetLicenseKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	st.LicenseKey = key
	return s.save(st)
}

// Settings returns the stored display flags. Unset flags default to "0".
func (s *SettingsStore) Settings() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}

	flags := make(map[string]string, len(BlurSettings))
	for _, name := range BlurSettings {
		value, ok := st.Settings[name]
		if !ok {
			value = "0"
		}
		flags[name] = value
	}
	return flags, nil
}

// SetSettings persists the known display flags from the supplied map.
// Unknown keys are ignored; missing keys are stored as "0".
func (s *SettingsStore) SetSettings(flags map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	if st.Settings == nil {
		st.Settings = make(map[string]string, len(BlurSettings))
	}
	for _, name := range BlurSettings {
		value, ok := flags[name]
		if !ok {
			value = "0"
		}
		st.Settings[name] = value
	}
	return s.save(st)
}

// load reads the state file; a missing file is an empty state.
func (s *SettingsStore) load() (*state, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &state{}, nil
		}
		return nil, fmt.Errorf("read agent state: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse agent state: %w", err)
	}
	return &st, nil
}

// save writes the state atomically via a temp file rename.
func (s *SettingsStore) save(st *state) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode agent state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write agent state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace agent state: %w", err)
	}
	return nil
}
