package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// ConfigDirEnv overrides the config directory, mostly for tests.
const ConfigDirEnv = "STABILITY_SKILL_CONFIG_DIR"

const appName = "stability-skill"

var ErrKeyNotFound = errors.New("no stored key")

// Store keeps provider credentials in keys.json under the config directory.
type Store struct {
	configDir string
}

type entry struct {
	Key string `json:"key"`
}

type keyFile map[string]entry

func NewStore() (*Store, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return &Store{configDir: dir}, nil
}

// NewStoreAt uses dir instead of the platform config directory.
func NewStoreAt(dir string) *Store {
	return &Store{configDir: dir}
}

// ConfigDir returns the platform config directory for the skill.
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, appName), nil
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, appName), nil
	}
}

func (s *Store) Dir() string {
	return s.configDir
}

func (s *Store) Path() string {
	return filepath.Join(s.configDir, "keys.json")
}

func (s *Store) read() (keyFile, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(keyFile), nil
		}
		return nil, err
	}

	var keys keyFile
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse keys.json: %w", err)
	}
	if keys == nil {
		keys = make(keyFile)
	}
	return keys, nil
}

func (s *Store) write(keys keyFile) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}

	// owner read/write only
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write keys.json: %w", err)
	}
	return nil
}

func (s *Store) Set(provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key must not be empty")
	}
	keys, err := s.read()
	if err != nil {
		return err
	}
	keys[provider] = entry{Key: key}
	return s.write(keys)
}

// Get returns the stored key, or "" when none is stored.
func (s *Store) Get(provider string) (string, error) {
	keys, err := s.read()
	if err != nil {
		return "", err
	}
	return keys[provider].Key, nil
}

func (s *Store) Delete(provider string) error {
	keys, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := keys[provider]; !ok {
		return fmt.Errorf("%w for %s", ErrKeyNotFound, provider)
	}
	delete(keys, provider)
	return s.write(keys)
}

// List returns stored provider names, sorted.
func (s *Store) List() ([]string, error) {
	keys, err := s.read()
	if err != nil {
		return nil, err
	}
	providers := make([]string, 0, len(keys))
	for provider := range keys {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers, nil
}

// MaskKey hides all but the first and last four characters.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
