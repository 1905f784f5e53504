package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLazy_BuildsOnce(t *testing.T) {
	builds := 0
	next := &countingGetter{value: "v"}
	l := NewLazy(func(context.Context) (Getter, error) {
		builds++
		return next, nil
	})
	require.Equal(t, 0, builds)

	for i := 0; i < 3; i++ {
		v, err := l.GetParameter(context.Background(), "key")
		require.NoError(t, err)
		require.Equal(t, "v:key", v)
	}
	require.Equal(t, 1, builds)
	require.Equal(t, 3, next.calls)
}

func TestLazy_RetriesFailedBuild(t *testing.T) {
	boom := errors.New("no credentials")
	builds := 0
	l := NewLazy(func(context.Context) (Getter, error) {
		builds++
		if builds == 1 {
			return nil, boom
		}
		return &countingGetter{value: "v"}, nil
	})

	_, err := l.GetParameter(context.Background(), "key")
	require.ErrorIs(t, err, boom)

	v, err := l.GetParameter(context.Background(), "key")
	require.NoError(t, err)
	require.Equal(t, "v:key", v)
	require.Equal(t, 2, builds)
}
