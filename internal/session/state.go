package session

import "time"

// Status tracks where a session's query is in its turn.
type Status string

const (
	StatusQueryPending     Status = "query_pending"
	StatusImageReady       Status = "image_ready"
	StatusGenerationFailed Status = "generation_failed"
	StatusPresented        Status = "presented"
)

// DefaultTitle is shown above a drawn image unless a follow-up overrides it.
const DefaultTitle = "Stability AI"

// State is the per-session query record.
type State struct {
	Query     string
	ImagePath string
	Title     string
	TurnIndex int
	Lang      string
	Status    Status
	CreatedAt time.Time
}

// NewState starts a fresh turn for query.
func NewState(query, lang string) *State {
	return &State{
		Query:     query,
		Title:     DefaultTitle,
		Lang:      lang,
		Status:    StatusQueryPending,
		CreatedAt: time.Now(),
	}
}

func (s *State) HasImage() bool {
	return s != nil && s.ImagePath != ""
}
