package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "settings.yaml"

// fileSettings mirrors the YAML document. Pointers tell "unset" apart from
// zero values so defaults only fill keys that are absent.
type fileSettings struct {
	APIKey          *string  `yaml:"api_key"`
	APIKeyParameter *string  `yaml:"api_key_parameter"`
	Model           *string  `yaml:"model"`
	StylePreset     *string  `yaml:"style_preset"`
	Name            *string  `yaml:"name"`
	Confirmation    *bool    `yaml:"confirmation"`
	BaseURL         *string  `yaml:"base_url"`
	CacheDir        *string  `yaml:"cache_dir"`
	Threshold       *float64 `yaml:"threshold"`
	Retention       *struct {
		MaxAge   *time.Duration `yaml:"max_age"`
		MaxFiles *int           `yaml:"max_files"`
	} `yaml:"retention"`
}

// FileProvider reads a YAML settings file on every call. A missing file
// yields the defaults.
type FileProvider struct {
	path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// DefaultPath places settings.yaml next to keys.json.
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, FileName)
}

func (p *FileProvider) Path() string {
	return p.path
}

func (p *FileProvider) Settings(ctx context.Context) (*Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := Defaults()
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var fs fileSettings
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p.path, err)
	}
	fs.apply(s)
	return s, nil
}

func (fs *fileSettings) apply(s *Settings) {
	setString(&s.APIKey, fs.APIKey)
	setString(&s.APIKeyParameter, fs.APIKeyParameter)
	setString(&s.Model, fs.Model)
	setString(&s.StylePreset, fs.StylePreset)
	setString(&s.Name, fs.Name)
	setString(&s.BaseURL, fs.BaseURL)
	setString(&s.CacheDir, fs.CacheDir)

	if fs.Confirmation != nil {
		s.Confirmation = *fs.Confirmation
	}
	if fs.Threshold != nil && *fs.Threshold > 0 && *fs.Threshold < 1 {
		s.Threshold = *fs.Threshold
	}
	if fs.Retention != nil {
		if fs.Retention.MaxAge != nil {
			s.Retention.MaxAge = *fs.Retention.MaxAge
		}
		if fs.Retention.MaxFiles != nil {
			s.Retention.MaxFiles = *fs.Retention.MaxFiles
		}
	}
}

// setString overwrites dst unless v is unset. An explicit empty style
// preset is kept so the request omits it.
func setString(dst *string, v *string) {
	if v == nil {
		return
	}
	*dst = strings.TrimSpace(*v)
}
