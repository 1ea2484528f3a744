package session

import (
	"sync"
	"sync/atomic"

	"github.com/scrum0/scrum0/internal/auth/domain"
)

// State is a snapshot of the session. Values returned by Store are copies and
// may be kept or modified freely.
type State struct {
	User       *domain.Profile          `json:"user"`
	Loading    bool                     `json:"loading"`
	Error      string                   `json:"error,omitempty"`
	Connection *domain.ConnectionStatus `json:"connection_status,omitempty"`
	Phase      domain.Phase             `json:"phase"`

	initialized bool
}

func (s State) clone() State {
	s.User = s.User.Clone()
	if s.Connection != nil {
		cs := *s.Connection
		s.Connection = &cs
	}
	return s
}

func (s State) phase() domain.Phase {
	switch {
	case !s.initialized:
		return domain.PhaseUninitialized
	case s.Loading:
		return domain.PhaseLoading
	case s.Error != "":
		return domain.PhaseErrored
	case s.User != nil:
		return domain.PhaseAuthenticated
	default:
		return domain.PhaseAnonymous
	}
}

// update is one field change applied by Store.set.
type update func(*State)

func withUser(p *domain.Profile) update {
	p = p.Clone()
	return func(s *State) { s.User = p }
}

func withLoading(loading bool) update {
	return func(s *State) { s.Loading = loading }
}

func withError(msg string) update {
	return func(s *State) { s.Error = msg }
}

func withConnection(cs domain.ConnectionStatus) update {
	return func(s *State) { s.Connection = &cs }
}

// Observer receives every state change.
type Observer func(State)

type observer struct {
	id     uint64
	fn     Observer
	active atomic.Bool
}

// Store holds the session state and fans changes out to observers.
//
// Every call to set produces exactly one notification round. Rounds are
// delivered in the order the sets happened, each to the observers registered
// when the round starts, in registration order. A set made by an observer
// while a round is being delivered is queued behind it and delivered by the
// goroutine already notifying.
type Store struct {
	mu        sync.Mutex
	state     State
	observers []*observer
	nextID    uint64

	pending    []State
	delivering bool
}

// NewStore returns a store in its initial state: no user, loading, no error
// and no connection status.
func NewStore() *Store {
	s := &Store{state: State{Loading: true}}
	s.state.Phase = s.state.phase()
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn for future changes. The returned function removes it
// and may be called any number of times, including from inside fn.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	o := &observer{fn: fn}
	o.active.Store(true)

	s.mu.Lock()
	o.id = s.nextID
	s.nextID++
	s.observers = append(s.observers, o)
	s.mu.Unlock()

	return func() { s.remove(o) }
}

func (s *Store) remove(o *observer) {
	if !o.active.Swap(false) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.observers {
		if cur == o {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

// set applies updates atomically and notifies observers. The first set moves
// the state out of PhaseUninitialized.
func (s *Store) set(updates ...update) {
	s.mu.Lock()
	next := s.state.clone()
	for _, u := range updates {
		u(&next)
	}
	next.initialized = true
	next.Phase = next.phase()
	s.state = next
	s.pending = append(s.pending, next.clone())

	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	s.mu.Unlock()

	s.drain()
}

// drain delivers queued rounds. An observer that panics ends delivery for the
// current caller but leaves the store able to deliver later sets.
func (s *Store) drain() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.delivering = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		round := s.pending[0]
		s.pending = s.pending[1:]
		observers := append([]*observer(nil), s.observers...)
		s.mu.Unlock()

		for _, o := range observers {
			if !o.active.Load() {
				continue
			}
			o.fn(round.clone())
		}
	}
}
