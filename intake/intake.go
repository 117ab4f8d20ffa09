// Copyright (c) 2025 BVK Chaitanya

// Package intake implements the conversation that collects a symbol and its
// bounds from a user and registers them as a watch.
package intake

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/bvk/pricebot/syncmap"
	"github.com/bvk/pricebot/watch"
)

var ErrNotANumber = errors.New("please enter a number")

type State int

const (
	Inactive State = iota
	AwaitSymbol
	AwaitLower
	AwaitUpper
	AwaitMore
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case AwaitSymbol:
		return "await-symbol"
	case AwaitLower:
		return "await-lower"
	case AwaitUpper:
		return "await-upper"
	case AwaitMore:
		return "await-more"
	}
	return "unknown"
}

const (
	Yes = "Yes"
	No  = "No"
)

// Reply is the answer to one user message. Choices, when not empty, are the
// only expected answers and can be shown as buttons.
type Reply struct {
	Text    string
	Choices []string
}

type session struct {
	mu    sync.Mutex
	state State
}

// Form tracks the intake state of every session and drives the watch store
// with the collected values.
type Form struct {
	store    *watch.Store
	currency string

	sessionMap syncmap.Map[watch.SessionID, *session]
}

func New(store *watch.Store, currency string) *Form {
	return &Form{
		store:    store,
		currency: currency,
	}
}

func (f *Form) get(id watch.SessionID) *session {
	s, _ := f.sessionMap.LoadOrCreate(id, func() *session { return new(session) })
	return s
}

// State returns the current intake state of a session.
func (f *Form) State(id watch.SessionID) State {
	s, ok := f.sessionMap.Load(id)
	if !ok {
		return Inactive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (f *Form) askSymbol() string {
	return fmt.Sprintf("Enter the ticker symbol of a crypto currency in latin letters to compare with %s. For example: BTC", f.currency)
}

// Start restarts the form for a session. An unfinished watch of the session
// is dropped; armed watches are kept.
func (f *Form) Start(id watch.SessionID) Reply {
	s := f.get(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	f.dropPending(id)
	s.state = AwaitSymbol
	return Reply{Text: f.askSymbol()}
}

// Cancel stops the form and removes every watch of the session. Returns the
// number of watches removed.
func (f *Form) Cancel(id watch.SessionID) int {
	s := f.get(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Inactive
	return f.store.Reset(id)
}

func (f *Form) dropPending(id watch.SessionID) {
	if w, ok := f.store.Pending(id); ok {
		f.store.Remove(id, w.ID)
		slog.Info("dropped unfinished watch", "session", id, "symbol", w.Symbol)
	}
}

// Handle processes one free text message from the session and returns the
// answer. Invalid input keeps the form in its current state.
func (f *Form) Handle(id watch.SessionID, text string) Reply {
	s := f.get(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	text = strings.TrimSpace(text)
	switch s.state {
	case AwaitSymbol:
		if _, err := f.store.AddWatch(id, text); err != nil {
			slog.Debug("rejected ticker symbol", "session", id, "text", text, "err", err)
			return Reply{Text: "Please enter the ticker symbol in latin letters, for example BTC."}
		}
		s.state = AwaitLower
		symbol, _ := watch.NormalizeSymbol(text)
		return Reply{Text: fmt.Sprintf("Enter the minimum price of %s in %s to be notified about.", symbol, f.currency)}

	case AwaitLower:
		v, err := parseNumber(text)
		if err != nil {
			return Reply{Text: err.Error()}
		}
		if _, err := f.store.SetLowerBound(id, v); err != nil {
			return f.boundError(id, s, err)
		}
		s.state = AwaitUpper
		return Reply{Text: "Now enter the maximum price:"}

	case AwaitUpper:
		v, err := parseNumber(text)
		if err != nil {
			return Reply{Text: err.Error()}
		}
		if _, err := f.store.SetUpperBound(id, v); err != nil {
			return f.boundError(id, s, err)
		}
		s.state = AwaitMore
		return Reply{Text: "Pair added! Do you want to add another pair? Yes/No", Choices: []string{Yes, No}}

	case AwaitMore:
		switch {
		case strings.EqualFold(text, Yes):
			s.state = AwaitSymbol
			return Reply{Text: f.askSymbol()}
		case strings.EqualFold(text, No):
			s.state = Inactive
			n := len(f.store.Snapshot(id))
			return Reply{Text: fmt.Sprintf("Watching %d pair(s). You will be notified when a bound is crossed.", n)}
		}
		return Reply{Text: "Please answer Yes or No.", Choices: []string{Yes, No}}
	}
	return Reply{Text: "Send /start to add a pair to watch or /help for the list of commands."}
}

func (f *Form) boundError(id watch.SessionID, s *session, err error) Reply {
	if errors.Is(err, watch.ErrInvalidBound) {
		return Reply{Text: err.Error()}
	}
	// The pending watch disappeared, e.g. removed by /cancel.
	slog.Warn("intake lost its pending watch", "session", id, "state", s.state, "err", err)
	s.state = AwaitSymbol
	return Reply{Text: f.askSymbol()}
}

func parseNumber(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, ErrNotANumber
	}
	return v, nil
}
