// Package present speaks and shows the outcome of a session's draw.
package present

import (
	"github.com/sirupsen/logrus"

	"github.com/manash/stability-skill/internal/host"
	"github.com/manash/stability-skill/internal/locale"
	"github.com/manash/stability-skill/internal/session"
)

type Presenter struct {
	store   *session.Store
	gui     host.GUI
	speaker host.Speaker
	log     logrus.FieldLogger
}

func New(store *session.Store, gui host.GUI, speaker host.Speaker, log logrus.FieldLogger) *Presenter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Presenter{store: store, gui: gui, speaker: speaker, log: log}
}

// Present speaks "done" and shows the image when the session has one, and
// speaks "none" otherwise. A non-empty title replaces the stored one. The
// turn index advances once per call for any session with state. It returns
// the dialog id that was spoken.
func (p *Presenter) Present(s host.Session, title string) string {
	st, ok := p.store.Get(s.ID)
	if !ok {
		p.log.WithFields(logrus.Fields{
			"session": s.ID,
			"known":   p.store.IDs(),
		}).Info("no query state for session")
		p.speak(s, locale.DialogNone)
		return locale.DialogNone
	}

	if title == "" {
		title = st.Title
	}
	if title == "" {
		title = session.DefaultTitle
	}

	dialog := locale.DialogDone
	if !st.HasImage() {
		p.log.WithFields(logrus.Fields{"session": s.ID, "query": st.Query}).Info("no image to present")
		dialog = locale.DialogNone
	}
	p.speak(s, dialog)

	if st.HasImage() {
		p.display(s, st.ImagePath, title)
	}

	err := p.store.Update(s.ID, func(cur *session.State) error {
		cur.TurnIndex++
		cur.Title = title
		if cur.HasImage() {
			cur.Status = session.StatusPresented
		}
		return nil
	})
	if err != nil {
		// the session ended while we were speaking
		p.log.WithError(err).WithField("session", s.ID).Debug("could not advance turn")
	}
	return dialog
}

func (p *Presenter) display(s host.Session, path, title string) {
	if p.gui == nil || !p.gui.CanUse() {
		p.log.Debug("GUI not enabled")
		return
	}
	if err := p.gui.ShowImage(path, host.DefaultImageOptions(title)); err != nil {
		p.log.WithError(err).WithField("session", s.ID).Warn("could not display image")
	}
}

func (p *Presenter) speak(s host.Session, id string) {
	if err := p.speaker.SpeakDialog(s, id, nil); err != nil {
		p.log.WithError(err).WithField("dialog", id).Warn("could not speak dialog")
	}
}

// Release frees the visual surface.
func (p *Presenter) Release() error {
	if p.gui == nil {
		return nil
	}
	return p.gui.Release()
}
