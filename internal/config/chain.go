package config

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// KeyGetter looks up a stored credential by provider name.
type KeyGetter interface {
	Get(provider string) (string, error)
}

// Chain fills an empty api_key from the key store and then the
// environment.
type Chain struct {
	base     Provider
	keys     KeyGetter
	provider string
	lookup   func(string) string
	log      logrus.FieldLogger
}

func NewChain(base Provider, keys KeyGetter, provider string, log logrus.FieldLogger) *Chain {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Chain{
		base:     base,
		keys:     keys,
		provider: provider,
		lookup:   os.Getenv,
		log:      log,
	}
}

func (c *Chain) Settings(ctx context.Context) (*Settings, error) {
	s, err := c.base.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if s.APIKey != "" {
		return s, nil
	}

	if c.keys != nil {
		key, err := c.keys.Get(c.provider)
		if err != nil {
			c.log.WithError(err).Warn("could not read stored keys")
		} else if key != "" {
			s.APIKey = key
			return s, nil
		}
	}

	s.APIKey = c.lookup(APIKeyEnv)
	return s, nil
}

// WithEnv replaces the environment lookup used as the last source.
func (c *Chain) WithEnv(lookup func(string) string) *Chain {
	if lookup != nil {
		c.lookup = lookup
	}
	return c
}
