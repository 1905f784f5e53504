// Package generate turns a query into a cached image file through the
// configured provider.
package generate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/manash/stability-skill/internal/config"
	"github.com/manash/stability-skill/internal/history"
	"github.com/manash/stability-skill/internal/image"
	"github.com/manash/stability-skill/internal/provider"
	"github.com/manash/stability-skill/internal/provider/stability"
	"github.com/manash/stability-skill/pkg/models"
)

// Recorder keeps the ledger of attempts. Failures to record are logged and
// never fail a draw.
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
	MarkRemoved(ctx context.Context, path string) error
}

type Generator struct {
	settings    config.Provider
	newProvider provider.Constructor
	cacheDir    string
	recorder    Recorder
	inUse       func(path string) bool
	verbose     bool

	mu      sync.Mutex
	pending map[string]struct{}
	log         logrus.FieldLogger
	now         func() time.Time
}

type Option func(*Generator)

func WithConstructor(c provider.Constructor) Option {
	return func(g *Generator) { g.newProvider = c }
}

// WithCacheDir sets the directory used when settings leave cache_dir empty.
func WithCacheDir(dir string) Option {
	return func(g *Generator) { g.cacheDir = dir }
}

func WithRecorder(r Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// WithInUse protects paths still referenced elsewhere from pruning.
func WithInUse(fn func(path string) bool) Option {
	return func(g *Generator) { g.inUse = fn }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(g *Generator) { g.log = log }
}

func WithVerbose(v bool) Option {
	return func(g *Generator) { g.verbose = v }
}

func New(settings config.Provider, opts ...Option) *Generator {
	g := &Generator{
		settings:    settings,
		newProvider: stability.NewProvider,
		log:         logrus.StandardLogger(),
		now:         time.Now,
		pending:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate draws query and returns the path of the written image. On any
// error no file is left behind. The image is held back from pruning until
// Release is called with its path.
func (g *Generator) Generate(ctx context.Context, query string) (string, error) {
	return g.GenerateFor(ctx, "", query)
}

// GenerateFor is Generate with the owning session recorded in the ledger.
func (g *Generator) GenerateFor(ctx context.Context, sessionID, query string) (string, error) {
	start := g.now()
	entry := &history.Entry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Query:     query,
	}

	path, err := g.generate(ctx, query, entry)
	entry.Duration = g.now().Sub(start)
	if err != nil {
		entry.Status = history.StatusFailed
		entry.ErrorKind = KindOf(err).String()
		entry.Error = err.Error()
	} else {
		entry.Status = history.StatusSuccess
		entry.ImagePath = path
	}
	g.record(ctx, entry)
	return path, err
}

func (g *Generator) generate(ctx context.Context, query string, entry *history.Entry) (string, error) {
	s, err := g.settings.Settings(ctx)
	if err != nil {
		g.log.WithError(err).Error("could not load settings")
		return "", newError(NotConfigured, err)
	}
	if !s.HasCredential() {
		g.log.Error("Stability AI api_key not configured")
		return "", newError(NotConfigured, provider.ErrAPIKeyRequired)
	}

	engine, err := models.EngineFor(s.Model)
	if err != nil {
		g.log.WithError(err).Warnf("falling back to %s", models.DefaultModel)
		engine = models.EngineSDXL10
	}
	entry.Engine = engine.String()
	entry.StylePreset = s.StylePreset

	req := models.NewRequest(query)
	req.Engine = engine
	req.StylePreset = s.StylePreset

	p, err := g.newProvider(&provider.Config{
		APIKey:  s.APIKey,
		BaseURL: s.BaseURL,
		Verbose: g.verbose,
		Logger:  g.log,
	})
	if err != nil {
		g.log.WithError(err).Error("could not build provider")
		return "", newError(NotConfigured, err)
	}

	log := g.log.WithFields(logrus.Fields{"engine": engine, "style_preset": s.StylePreset})
	log.Debug("requesting image")

	resp, err := p.Generate(ctx, req)
	if err != nil {
		log.WithError(err).Error("image generation failed")
		if errors.Is(err, provider.ErrMalformedResponse) {
			return "", newError(MalformedResponse, err)
		}
		return "", newError(CallFailed, err)
	}

	img, err := resp.First()
	if err != nil {
		log.WithError(err).Error("image generation failed")
		return "", newError(MalformedResponse, err)
	}

	cache, err := g.cache(s)
	if err != nil {
		return "", newError(StorageFailed, err)
	}
	path, err := cache.Write(img.Data)
	if err != nil {
		log.WithError(err).Error("could not store image")
		return "", newError(StorageFailed, err)
	}
	log.WithField("path", path).Debug("image stored")

	g.hold(path)
	g.prune(ctx, cache)
	return path, nil
}

// Release lets a written image be pruned once the caller has recorded it
// where the in-use check can see it. Until then no prune removes it.
func (g *Generator) Release(path string) {
	g.mu.Lock()
	delete(g.pending, path)
	g.mu.Unlock()
}

func (g *Generator) hold(path string) {
	g.mu.Lock()
	g.pending[path] = struct{}{}
	g.mu.Unlock()
}

func (g *Generator) protected(path string) bool {
	g.mu.Lock()
	_, held := g.pending[path]
	g.mu.Unlock()
	return held || (g.inUse != nil && g.inUse(path))
}

// Prune applies the retention policy outside of a draw.
func (g *Generator) Prune(ctx context.Context) (*image.PruneResult, error) {
	s, err := g.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	cache, err := g.cache(s)
	if err != nil {
		return nil, err
	}
	result, err := cache.Prune(g.protected)
	g.markRemoved(ctx, result)
	return result, err
}

func (g *Generator) cache(s *config.Settings) (*image.Cache, error) {
	dir := s.CacheDir
	if dir == "" {
		dir = g.cacheDir
	}
	if dir == "" {
		d, err := image.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return image.NewCache(dir, s.CacheRetention()), nil
}

func (g *Generator) prune(ctx context.Context, cache *image.Cache) {
	result, err := cache.Prune(g.protected)
	if err != nil {
		g.log.WithError(err).Warn("cache prune failed")
	}
	g.markRemoved(ctx, result)
}

func (g *Generator) markRemoved(ctx context.Context, result *image.PruneResult) {
	if result == nil || g.recorder == nil {
		return
	}
	for _, e := range result.Removed {
		if err := g.recorder.MarkRemoved(ctx, e.Path); err != nil {
			g.log.WithError(err).Warn("could not update history")
		}
	}
}

func (g *Generator) record(ctx context.Context, e *history.Entry) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		g.log.WithError(err).Warn("could not record generation")
	}
}
