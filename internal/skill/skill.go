// Package skill is the surface the assistant host calls: common-query
// matching, the follow-up action, the direct intent and session teardown.
package skill

import (
	"context"
	"errors"
	"io/fs"

	"github.com/sirupsen/logrus"

	"github.com/manash/stability-skill/internal/config"
	"github.com/manash/stability-skill/internal/host"
	"github.com/manash/stability-skill/internal/intent"
	"github.com/manash/stability-skill/internal/locale"
	"github.com/manash/stability-skill/internal/present"
	"github.com/manash/stability-skill/internal/session"
)

const (
	ID = "stability_ai.skill"
	// ContextKey is set after an answer so follow-ups can refer to it.
	ContextKey = "StabilityAIDraws"
	// QuerySlot is the entity the direct intent binds.
	QuerySlot = "query"
	resultTag = "done"
)

// Generator draws a query on behalf of a session. A drawn path is
// released once the session store references it.
type Generator interface {
	GenerateFor(ctx context.Context, sessionID, query string) (string, error)
	Release(path string)
}

// QueryData is the payload handed back to the host with a match.
type QueryData struct {
	Query  string
	Image  string
	Title  string
	Answer string
}

type QueryResult struct {
	Phrase string
	Level  host.MatchLevel
	Tag    string
	Data   QueryData
}

type Deps struct {
	Store     *session.Store
	Generator Generator
	Settings  config.Provider
	GUI       host.GUI
	Speaker   host.Speaker
	Context   host.ContextSetter
	Threshold float64
	Logger    logrus.FieldLogger
}

type Skill struct {
	keywords  *intent.Extractor
	intents   *intent.Extractor
	store     *session.Store
	gen       Generator
	settings  config.Provider
	presenter *present.Presenter
	speaker   host.Speaker
	context   host.ContextSetter
	log       logrus.FieldLogger
}

func New(d Deps) *Skill {
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	store := d.Store
	if store == nil {
		store = session.NewStore()
	}
	opts := []intent.Option{intent.WithThreshold(d.Threshold), intent.WithLogger(log)}

	return &Skill{
		keywords:  intent.NewExtractor(opts...),
		intents:   intent.NewExtractor(opts...),
		store:     store,
		gen:       d.Generator,
		settings:  d.Settings,
		presenter: present.New(store, d.GUI, d.Speaker, log),
		speaker:   d.Speaker,
		context:   d.Context,
		log:       log.WithField("skill", ID),
	}
}

// RuntimeRequirements says the skill must not load without network access
// and works without a screen.
func RuntimeRequirements() host.RuntimeRequirements {
	return host.RuntimeRequirements{
		InternetBeforeLoad: true,
		NetworkBeforeLoad:  true,
		RequiresInternet:   true,
		RequiresNetwork:    true,
		NoGUIFallback:      true,
	}
}

// RegisterLocale loads templates for every language in the bundle. A
// language without a query.intent file is left disabled.
func (s *Skill) RegisterLocale(b *locale.Bundle) error {
	langs, err := b.Languages()
	if err != nil {
		return err
	}
	for _, lang := range langs {
		samples, err := b.Templates(lang, locale.QueryIntent)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.log.Warnf("%s/%s not found, drawing disabled for %q", lang, locale.QueryIntent, lang)
				continue
			}
			return err
		}
		s.keywords.RegisterPatterns(samples, lang)

		direct, err := b.Templates(lang, locale.StabilityIntent)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		s.intents.RegisterPatterns(direct, lang)
	}
	return nil
}

// Languages lists the languages with keyword templates.
func (s *Skill) Languages() []string {
	return s.keywords.Languages()
}

func (s *Skill) Store() *session.Store {
	return s.store
}

// MatchQueryPhrase answers a common query. It returns false when the phrase
// is not a drawing request or the draw failed.
func (s *Skill) MatchQueryPhrase(ctx context.Context, sess host.Session, phrase string) (*QueryResult, bool) {
	query, ok := s.keywords.ExtractKeyword(phrase, sess.Lang)
	if !ok {
		return nil, false
	}

	if err := s.store.Put(sess.ID, session.NewState(query, sess.Lang)); err != nil {
		s.log.WithError(err).Error("could not record query")
		return nil, false
	}

	path, ok := s.draw(ctx, sess)
	if !ok {
		s.speakError(ctx, sess)
		return nil, false
	}
	s.log.WithField("session", sess.ID).Info("Stability AI answered")

	// the host speaks the answer itself
	if _, err := s.store.Advance(sess.ID); err != nil {
		s.log.WithError(err).Debug("session ended during match")
	}

	return &QueryResult{
		Phrase: phrase,
		Level:  host.MatchGeneral,
		Tag:    resultTag,
		Data: QueryData{
			Query:  query,
			Image:  path,
			Title:  session.DefaultTitle,
			Answer: phrase,
		},
	}, true
}

// Action runs when the host picked this skill's answer.
func (s *Skill) Action(ctx context.Context, sess host.Session, phrase string, data QueryData) {
	if _, ok := s.store.Get(sess.ID); ok {
		s.ShowResult(sess)
	} else {
		s.log.WithFields(logrus.Fields{
			"session": sess.ID,
			"known":   s.store.IDs(),
		}).Error("session has no query state")
	}

	value := data.Title
	if value == "" {
		value = phrase
	}
	if s.context != nil {
		s.context.SetContext(sess, ContextKey, value)
	}
}

// MatchIntent binds the query slot of a direct "ask stability to draw"
// utterance.
func (s *Skill) MatchIntent(sess host.Session, utterance string) (string, bool) {
	m, ok := s.intents.Match(utterance, sess.Lang)
	if !ok {
		return "", false
	}
	q := m.Entities[QuerySlot]
	return q, q != ""
}

// HandleQuery is the direct intent: draw query now and present the result.
func (s *Skill) HandleQuery(ctx context.Context, sess host.Session, query string) {
	if err := s.store.Put(sess.ID, session.NewState(query, sess.Lang)); err != nil {
		s.log.WithError(err).Error("could not record query")
		s.speakError(ctx, sess)
		return
	}

	settings := s.currentSettings(ctx)
	if settings.Confirmation {
		s.speakNamed(sess, locale.DialogAsking, settings.Name)
	}

	if _, ok := s.draw(ctx, sess); !ok {
		s.speakNamed(sess, locale.DialogError, settings.Name)
		return
	}
	s.ShowResult(sess)
}

// ShowResult presents whatever the session holds.
func (s *Skill) ShowResult(sess host.Session) string {
	return s.presenter.Present(sess, "")
}

// StopSession drops the session's state. Hosts must call it for every
// session that reached the skill.
func (s *Skill) StopSession(sess host.Session) bool {
	return s.store.Remove(sess.ID)
}

// Stop releases the visual surface.
func (s *Skill) Stop() error {
	return s.presenter.Release()
}

func (s *Skill) draw(ctx context.Context, sess host.Session) (string, bool) {
	st, ok := s.store.Get(sess.ID)
	if !ok {
		return "", false
	}

	path, err := s.gen.GenerateFor(ctx, sess.ID, st.Query)
	if err != nil {
		if err := s.store.MarkFailed(sess.ID); err != nil {
			s.log.WithError(err).Debug("session ended during draw")
		}
		return "", false
	}

	defer s.gen.Release(path)

	if err := s.store.SetImage(sess.ID, path); err != nil {
		s.log.WithError(err).WithField("session", sess.ID).Warn("could not record image")
		return "", false
	}
	return path, true
}

func (s *Skill) currentSettings(ctx context.Context) *config.Settings {
	if s.settings == nil {
		return config.Defaults()
	}
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		s.log.WithError(err).Warn("could not load settings, using defaults")
		return config.Defaults()
	}
	return settings
}

func (s *Skill) speakError(ctx context.Context, sess host.Session) {
	s.speakNamed(sess, locale.DialogError, s.currentSettings(ctx).Name)
}

func (s *Skill) speakNamed(sess host.Session, id, name string) {
	if name == "" {
		name = config.DefaultName
	}
	if err := s.speaker.SpeakDialog(sess, id, map[string]string{"name": name}); err != nil {
		s.log.WithError(err).WithField("dialog", id).Warn("could not speak dialog")
	}
}

// TurnResult summarizes one utterance handled by Turn.
type TurnResult struct {
	Matched bool
	Direct  bool
	Query   string
	Image   string
}

// Turn routes an utterance the way a host would: the direct intent first,
// then the common query followed by its action.
func (s *Skill) Turn(ctx context.Context, sess host.Session, utterance string) TurnResult {
	if query, ok := s.MatchIntent(sess, utterance); ok {
		s.HandleQuery(ctx, sess, query)
		st, _ := s.store.Get(sess.ID)
		return TurnResult{Matched: true, Direct: true, Query: query, Image: st.ImagePath}
	}

	res, ok := s.MatchQueryPhrase(ctx, sess, utterance)
	if !ok {
		st, found := s.store.Get(sess.ID)
		if found && st.Status == session.StatusGenerationFailed {
			return TurnResult{Matched: true, Query: st.Query}
		}
		return TurnResult{}
	}
	s.Action(ctx, sess, utterance, res.Data)
	return TurnResult{Matched: true, Query: res.Data.Query, Image: res.Data.Image}
}
