package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/manash/stability-skill/pkg/models"
)

var (
	ErrAPIKeyRequired    = errors.New("API key is required")
	ErrGenerationFailed  = errors.New("image generation failed")
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrContentFiltered   = errors.New("image was filtered by the provider")
)

const DefaultTimeout = 120 * time.Second

// Provider turns a text prompt into image bytes.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *models.Request) (*models.Response, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
	Verbose    bool
	Logger     logrus.FieldLogger
}

func (c *Config) Log() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

func (c *Config) Timeout() time.Duration {
	if c.TimeoutSec > 0 {
		return time.Duration(c.TimeoutSec) * time.Second
	}
	return DefaultTimeout
}

// Constructor builds a provider from freshly read settings.
type Constructor func(cfg *Config) (Provider, error)

// StatusError carries a non-2xx answer from a provider API.
type StatusError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("status %d (%s): %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return ErrGenerationFailed
}
