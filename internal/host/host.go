// Package host describes what the skill needs from, and offers to, the
// assistant runtime that loads it.
package host

// Session identifies the conversation a call belongs to.
type Session struct {
	ID   string
	Lang string
}

const (
	FillPreserveAspectFit = "PreserveAspectFit"
	// DisplaySeconds is how long a drawn image overrides the idle screen.
	DisplaySeconds = 60
)

type ImageOptions struct {
	Title              string
	Fill               string
	OverrideIdle       int
	OverrideAnimations bool
}

// DefaultImageOptions is how every drawn image is shown.
func DefaultImageOptions(title string) ImageOptions {
	return ImageOptions{
		Title:              title,
		Fill:               FillPreserveAspectFit,
		OverrideIdle:       DisplaySeconds,
		OverrideAnimations: true,
	}
}

// GUI is an optional visual surface.
type GUI interface {
	CanUse() bool
	ShowImage(path string, opts ImageOptions) error
	Release() error
}

// Speaker renders a dialog id in the session language and speaks it.
type Speaker interface {
	SpeakDialog(session Session, id string, data map[string]string) error
}

// ContextSetter keeps a named value around for follow-up utterances.
type ContextSetter interface {
	SetContext(session Session, key, value string)
}

// MatchLevel tells the host how confident a common-query answer is.
type MatchLevel int

const (
	MatchExact MatchLevel = iota + 1
	MatchCategory
	MatchGeneral
)

func (l MatchLevel) String() string {
	switch l {
	case MatchExact:
		return "exact"
	case MatchCategory:
		return "category"
	case MatchGeneral:
		return "general"
	default:
		return "unknown"
	}
}

// RuntimeRequirements tells the host when the skill may be loaded.
type RuntimeRequirements struct {
	InternetBeforeLoad bool
	NetworkBeforeLoad  bool
	GUIBeforeLoad      bool
	RequiresInternet   bool
	RequiresNetwork    bool
	RequiresGUI        bool
	NoInternetFallback bool
	NoNetworkFallback  bool
	NoGUIFallback      bool
}
