// Package config resolves skill settings at call time so edits and key
// rotation take effect on the next request without a restart.
package config

import (
	"context"
	"time"

	"github.com/manash/stability-skill/internal/image"
	"github.com/manash/stability-skill/internal/intent"
	"github.com/manash/stability-skill/pkg/models"
)

const (
	DefaultName = "Stability AI"
	// APIKeyEnv is consulted last when no key is configured or stored.
	APIKeyEnv = "STABILITY_API_KEY"
)

// Provider yields the current settings. Callers ask at the start of every
// operation instead of caching the result.
type Provider interface {
	Settings(ctx context.Context) (*Settings, error)
}

type Retention struct {
	MaxAge   time.Duration `yaml:"max_age"`
	MaxFiles int           `yaml:"max_files"`
}

type Settings struct {
	APIKey          string
	APIKeyParameter string
	Model           string
	StylePreset     string
	Name            string
	Confirmation    bool
	BaseURL         string
	CacheDir        string
	Retention       Retention
	Threshold       float64
}

// Defaults returns the settings used for every key the user has not set.
func Defaults() *Settings {
	return &Settings{
		Model:        models.DefaultModel,
		StylePreset:  models.DefaultStylePreset,
		Name:         DefaultName,
		Confirmation: true,
		Retention: Retention{
			MaxAge:   image.DefaultMaxAge,
			MaxFiles: image.DefaultMaxFiles,
		},
		Threshold: intent.DefaultThreshold,
	}
}

// HasCredential reports whether a generation call can be attempted.
func (s *Settings) HasCredential() bool {
	return s != nil && s.APIKey != ""
}

// CacheRetention converts to the image cache's policy type.
func (s *Settings) CacheRetention() image.Retention {
	return image.Retention{MaxAge: s.Retention.MaxAge, MaxFiles: s.Retention.MaxFiles}
}

// Static always returns a copy of the same settings.
type Static struct {
	S Settings
}

func (p Static) Settings(context.Context) (*Settings, error) {
	s := p.S
	return &s, nil
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (*Settings, error)

func (f ProviderFunc) Settings(ctx context.Context) (*Settings, error) {
	return f(ctx)
}
