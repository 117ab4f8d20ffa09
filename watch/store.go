// Copyright (c) 2025 BVK Chaitanya

package watch

import (
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/bvk/pricebot/syncmap"
	"github.com/google/uuid"
	"github.com/visvasity/topic"
)

// Event is published when a watch becomes armed.
type Event struct {
	Session SessionID
	WatchID uuid.UUID
	Symbol  string
}

type session struct {
	mu sync.Mutex

	watches []*Watch

	// pending points to the most recently added watch that is not armed yet.
	pending *Watch
}

// Store holds the watch sets of all sessions. Operations on one session are
// serialized by a per-session lock; sessions never share a lock.
type Store struct {
	now func() time.Time

	sessionMap syncmap.Map[SessionID, *session]

	armedTopic *topic.Topic[Event]
}

func NewStore() *Store {
	return &Store{
		now:        time.Now,
		armedTopic: topic.New[Event](),
	}
}

// Events returns the topic that receives an Event every time a watch is
// armed.
func (s *Store) Events() *topic.Topic[Event] {
	return s.armedTopic
}

func (s *Store) get(id SessionID) *session {
	v, _ := s.sessionMap.LoadOrCreate(id, func() *session { return new(session) })
	return v
}

func (s *Store) lookup(id SessionID) (*session, bool) {
	return s.sessionMap.Load(id)
}

// AddWatch appends a new watch with only the symbol set and makes it the
// session's pending watch. An older pending watch of the session is dropped
// because nothing can complete it anymore.
func (s *Store) AddWatch(id SessionID, symbol string) (Handle, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return Handle{}, err
	}

	w := &Watch{
		ID:        uuid.New(),
		Session:   id,
		Symbol:    sym,
		CreatedAt: s.now(),
	}

	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if old := sess.pending; old != nil {
		sess.watches = slices.DeleteFunc(sess.watches, func(v *Watch) bool { return v == old })
		slog.Info("dropped unfinished watch", "session", id, "symbol", old.Symbol, "watch", old.ID)
	}
	sess.watches = append(sess.watches, w)
	sess.pending = w
	return Handle{Session: id, ID: w.ID}, nil
}

func checkBound(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return ErrInvalidBound
	}
	return nil
}

// SetLowerBound sets the lower bound of the session's pending watch.
func (s *Store) SetLowerBound(id SessionID, value float64) (Watch, error) {
	if err := checkBound(value); err != nil {
		return Watch{}, err
	}
	sess, ok := s.lookup(id)
	if !ok {
		return Watch{}, ErrNoPendingWatch
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	w := sess.pending
	if w == nil || w.Lower != nil {
		return Watch{}, ErrNoPendingWatch
	}
	w.Lower = &value
	return *w, nil
}

// SetUpperBound sets the upper bound of the session's pending watch, which
// arms it and clears the pending slot. The lower bound must be set already.
func (s *Store) SetUpperBound(id SessionID, value float64) (Watch, error) {
	if err := checkBound(value); err != nil {
		return Watch{}, err
	}
	sess, ok := s.lookup(id)
	if !ok {
		return Watch{}, ErrNoPendingWatch
	}

	w, err := func() (*Watch, error) {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		// Lower bound comes first; a watch is armed only with both bounds.
		w := sess.pending
		if w == nil || w.Lower == nil || w.Upper != nil {
			return nil, ErrNoPendingWatch
		}
		w.Upper = &value
		w.Armed = true
		sess.pending = nil
		return w, nil
	}()
	if err != nil {
		return Watch{}, err
	}

	s.armedTopic.Send(Event{Session: id, WatchID: w.ID, Symbol: w.Symbol})
	return *w, nil
}

// Snapshot returns copies of the session's armed watches in insertion order.
// Store mutations after the call are not visible in the result.
func (s *Store) Snapshot(id SessionID) []Watch {
	sess, ok := s.lookup(id)
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	var ws []Watch
	for _, w := range sess.watches {
		if w.Armed {
			ws = append(ws, *w)
		}
	}
	return ws
}

// List returns copies of all watches of the session, including the pending
// one.
func (s *Store) List(id SessionID) []Watch {
	sess, ok := s.lookup(id)
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	ws := make([]Watch, 0, len(sess.watches))
	for _, w := range sess.watches {
		ws = append(ws, *w)
	}
	return ws
}

// Pending returns a copy of the session's pending watch.
func (s *Store) Pending(id SessionID) (Watch, bool) {
	sess, ok := s.lookup(id)
	if !ok {
		return Watch{}, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.pending == nil {
		return Watch{}, false
	}
	return *sess.pending, true
}

// Remove deletes a watch by identity. Returns false if the watch was already
// removed.
func (s *Store) Remove(id SessionID, watchID uuid.UUID) bool {
	sess, ok := s.lookup(id)
	if !ok {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	index := slices.IndexFunc(sess.watches, func(w *Watch) bool { return w.ID == watchID })
	if index < 0 {
		return false
	}
	if sess.watches[index] == sess.pending {
		sess.pending = nil
	}
	sess.watches = slices.Delete(sess.watches, index, index+1)
	return true
}

// IsEmpty returns true if the session has no watches, armed or pending.
func (s *Store) IsEmpty(id SessionID) bool {
	sess, ok := s.lookup(id)
	if !ok {
		return true
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return len(sess.watches) == 0
}

// HasArmed returns true if the session has at least one armed watch.
func (s *Store) HasArmed(id SessionID) bool {
	sess, ok := s.lookup(id)
	if !ok {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return slices.ContainsFunc(sess.watches, func(w *Watch) bool { return w.Armed })
}

// Reset drops all watches of the session and returns the number of watches
// removed.
func (s *Store) Reset(id SessionID) int {
	sess, ok := s.lookup(id)
	if !ok {
		return 0
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	n := len(sess.watches)
	sess.watches = nil
	sess.pending = nil
	return n
}

// Sessions returns the ids of all sessions that have at least one watch.
func (s *Store) Sessions() []SessionID {
	var ids []SessionID
	for id := range s.sessionMap.Keys() {
		if !s.IsEmpty(id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
