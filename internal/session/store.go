package session

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrImageAlreadySet = errors.New("image already recorded for this query")
	ErrEmptySessionID  = errors.New("session id is required")
)

// Store maps session ids to their query state. It is unbounded: every Put
// must be paired with a Remove when the owning session ends.
type Store struct {
	mu     sync.RWMutex
	states map[string]*State
}

func NewStore() *Store {
	return &Store{
		states: make(map[string]*State),
	}
}

// Put replaces whatever state the session had.
func (s *Store) Put(id string, state *State) error {
	if id == "" {
		return ErrEmptySessionID
	}
	cp := *state

	s.mu.Lock()
	s.states[id] = &cp
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the session's state.
func (s *Store) Get(id string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[id]
	if !ok {
		return State{}, false
	}
	return *st, true
}

func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.states[id]
	delete(s.states, id)
	return ok
}

// Update applies fn to the session's state under the write lock.
func (s *Store) Update(id string, fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[id]
	if !ok {
		return ErrSessionNotFound
	}
	cp := *st
	if err := fn(&cp); err != nil {
		return err
	}
	s.states[id] = &cp
	return nil
}

// SetImage records the generated image once per query.
func (s *Store) SetImage(id, path string) error {
	return s.Update(id, func(st *State) error {
		if st.ImagePath != "" {
			return ErrImageAlreadySet
		}
		st.ImagePath = path
		st.Status = StatusImageReady
		return nil
	})
}

func (s *Store) MarkFailed(id string) error {
	return s.Update(id, func(st *State) error {
		if st.ImagePath == "" {
			st.Status = StatusGenerationFailed
		}
		return nil
	})
}

// Advance bumps the turn index and returns the new value.
func (s *Store) Advance(id string) (int, error) {
	var idx int
	err := s.Update(id, func(st *State) error {
		st.TurnIndex++
		idx = st.TurnIndex
		return nil
	})
	return idx, err
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// References reports whether any live session points at path.
func (s *Store) References(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.states {
		if st.ImagePath == path {
			return true
		}
	}
	return false
}
