// Package hosttest provides recording host collaborators for tests.
package hosttest

import (
	"sync"

	"github.com/manash/stability-skill/internal/host"
)

type SpokenDialog struct {
	Session host.Session
	ID      string
	Data    map[string]string
}

// Speaker records every dialog it is asked to speak.
type Speaker struct {
	mu     sync.Mutex
	spoken []SpokenDialog
	Err    error
}

func (s *Speaker) SpeakDialog(session host.Session, id string, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, SpokenDialog{Session: session, ID: id, Data: data})
	return s.Err
}

func (s *Speaker) Spoken() []SpokenDialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SpokenDialog(nil), s.spoken...)
}

// IDs returns the spoken dialog ids in order.
func (s *Speaker) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, d := range s.spoken {
		ids = append(ids, d.ID)
	}
	return ids
}

type ShownImage struct {
	Path string
	Opts host.ImageOptions
}

// GUI records shown images. Enabled controls CanUse.
type GUI struct {
	mu       sync.Mutex
	Enabled  bool
	Err      error
	shown    []ShownImage
	released int
}

func (g *GUI) CanUse() bool {
	return g.Enabled
}

func (g *GUI) ShowImage(path string, opts host.ImageOptions) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shown = append(g.shown, ShownImage{Path: path, Opts: opts})
	return g.Err
}

func (g *GUI) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released++
	return nil
}

func (g *GUI) Shown() []ShownImage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ShownImage(nil), g.shown...)
}

func (g *GUI) Released() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}

// Context records the last value set per session and key.
type Context struct {
	mu     sync.Mutex
	values map[string]map[string]string
}

func (c *Context) SetContext(session host.Session, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]map[string]string)
	}
	if c.values[session.ID] == nil {
		c.values[session.ID] = make(map[string]string)
	}
	c.values[session.ID][key] = value
}

func (c *Context) Get(sessionID, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[sessionID][key]
	return v, ok
}
