package config

import (
	"context"
	"fmt"

	"github.com/manash/stability-skill/internal/config/paramstore"
)

// ParamStore resolves api_key from a parameter store entry when
// api_key_parameter is set and no key is configured inline.
type ParamStore struct {
	base   Provider
	getter paramstore.Getter
}

func NewParamStore(base Provider, getter paramstore.Getter) *ParamStore {
	return &ParamStore{base: base, getter: getter}
}

func (p *ParamStore) Settings(ctx context.Context) (*Settings, error) {
	s, err := p.base.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if s.APIKey != "" || s.APIKeyParameter == "" || p.getter == nil {
		return s, nil
	}

	key, err := p.getter.GetParameter(ctx, s.APIKeyParameter)
	if err != nil {
		return nil, fmt.Errorf("resolve api_key_parameter: %w", err)
	}
	s.APIKey = key
	return s, nil
}
