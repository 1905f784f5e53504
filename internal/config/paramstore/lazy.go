package paramstore

import (
	"context"
	"sync"
)

// Lazy builds its Getter on first use. Hosts that never set
// api_key_parameter never load cloud credentials.
type Lazy struct {
	build func(ctx context.Context) (Getter, error)

	mu     sync.Mutex
	getter Getter
}

func NewLazy(build func(ctx context.Context) (Getter, error)) *Lazy {
	return &Lazy{build: build}
}

func (l *Lazy) GetParameter(ctx context.Context, name string) (string, error) {
	g, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return g.GetParameter(ctx, name)
}

// get retries the build after a failure so a later call can pick up
// credentials that were missing.
func (l *Lazy) get(ctx context.Context) (Getter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.getter != nil {
		return l.getter, nil
	}
	g, err := l.build(ctx)
	if err != nil {
		return nil, err
	}
	l.getter = g
	return g, nil
}
