package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefaults(t *testing.T) {
	s := Defaults()
	assert.Equal(t, "sdxl_v1.0", s.Model)
	assert.Equal(t, "photographic", s.StylePreset)
	assert.Equal(t, "Stability AI", s.Name)
	assert.True(t, s.Confirmation)
	assert.Equal(t, 0.75, s.Threshold)
	assert.Equal(t, 24*time.Hour, s.Retention.MaxAge)
	assert.Equal(t, 64, s.Retention.MaxFiles)
	assert.False(t, s.HasCredential())
}

func TestFileProvider_MissingFileGivesDefaults(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "nope.yaml"))
	s, err := p.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestFileProvider_MergesDefaults(t *testing.T) {
	path := writeSettings(t, `
api_key: sk-abc
model: sd_v1.6
confirmation: false
retention:
  max_files: 5
`)
	s, err := NewFileProvider(path).Settings(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "sk-abc", s.APIKey)
	assert.Equal(t, "sd_v1.6", s.Model)
	assert.False(t, s.Confirmation)
	assert.Equal(t, "photographic", s.StylePreset)
	assert.Equal(t, "Stability AI", s.Name)
	assert.Equal(t, 5, s.Retention.MaxFiles)
	assert.Equal(t, 24*time.Hour, s.Retention.MaxAge)
}

func TestFileProvider_Durations(t *testing.T) {
	path := writeSettings(t, "retention:\n  max_age: 90m\nthreshold: 0.9\n")
	s, err := NewFileProvider(path).Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, s.Retention.MaxAge)
	assert.Equal(t, 0.9, s.Threshold)
}

func TestFileProvider_IgnoresOutOfRangeThreshold(t *testing.T) {
	path := writeSettings(t, "threshold: 1\n")
	s, err := NewFileProvider(path).Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.75, s.Threshold)
}

func TestFileProvider_EmptyStylePresetKept(t *testing.T) {
	path := writeSettings(t, "style_preset: \"\"\n")
	s, err := NewFileProvider(path).Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", s.StylePreset)
}

func TestFileProvider_RereadsEveryCall(t *testing.T) {
	path := writeSettings(t, "api_key: first\n")
	p := NewFileProvider(path)

	s, err := p.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", s.APIKey)

	require.NoError(t, os.WriteFile(path, []byte("api_key: second\n"), 0600))
	s, err = p.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", s.APIKey)
}

func TestFileProvider_InvalidYAML(t *testing.T) {
	path := writeSettings(t, "api_key: [unclosed\n")
	_, err := NewFileProvider(path).Settings(context.Background())
	assert.Error(t, err)
}

type mapKeys map[string]string

func (m mapKeys) Get(provider string) (string, error) {
	if v, ok := m["error"]; ok {
		return "", errors.New(v)
	}
	return m[provider], nil
}

func TestChain(t *testing.T) {
	tests := []struct {
		name   string
		inline string
		stored mapKeys
		env    string
		want   string
	}{
		{"inline wins", "inline", mapKeys{"stability": "stored"}, "env", "inline"},
		{"stored before env", "", mapKeys{"stability": "stored"}, "env", "stored"},
		{"env last", "", mapKeys{}, "env", "env"},
		{"store error falls through", "", mapKeys{"error": "corrupt"}, "env", "env"},
		{"nothing anywhere", "", mapKeys{}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := Static{S: Settings{APIKey: tt.inline}}
			c := NewChain(base, tt.stored, "stability", nil)
			c.lookup = func(key string) string {
				if key == APIKeyEnv {
					return tt.env
				}
				return ""
			}

			s, err := c.Settings(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.APIKey)
		})
	}
}

func TestChain_BaseError(t *testing.T) {
	boom := errors.New("boom")
	base := ProviderFunc(func(context.Context) (*Settings, error) { return nil, boom })
	_, err := NewChain(base, nil, "stability", nil).Settings(context.Background())
	assert.ErrorIs(t, err, boom)
}

type fakeGetter struct {
	calls int
	value string
	err   error
}

func (g *fakeGetter) GetParameter(context.Context, string) (string, error) {
	g.calls++
	return g.value, g.err
}

func TestParamStore(t *testing.T) {
	t.Run("resolves when parameter set", func(t *testing.T) {
		g := &fakeGetter{value: "from-ssm"}
		p := NewParamStore(Static{S: Settings{APIKeyParameter: "/stability/key"}}, g)
		s, err := p.Settings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "from-ssm", s.APIKey)
	})

	t.Run("inline key skips lookup", func(t *testing.T) {
		g := &fakeGetter{value: "from-ssm"}
		p := NewParamStore(Static{S: Settings{APIKey: "inline", APIKeyParameter: "/k"}}, g)
		s, err := p.Settings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "inline", s.APIKey)
		assert.Zero(t, g.calls)
	})

	t.Run("no parameter skips lookup", func(t *testing.T) {
		g := &fakeGetter{}
		s, err := NewParamStore(Static{}, g).Settings(context.Background())
		require.NoError(t, err)
		assert.Empty(t, s.APIKey)
		assert.Zero(t, g.calls)
	})

	t.Run("lookup error surfaces", func(t *testing.T) {
		g := &fakeGetter{err: errors.New("denied")}
		p := NewParamStore(Static{S: Settings{APIKeyParameter: "/k"}}, g)
		_, err := p.Settings(context.Background())
		assert.ErrorContains(t, err, "denied")
	})
}

func TestStatic_ReturnsCopy(t *testing.T) {
	p := Static{S: Settings{Name: "A"}}
	s, _ := p.Settings(context.Background())
	s.Name = "B"
	again, _ := p.Settings(context.Background())
	assert.Equal(t, "A", again.Name)
}
