// Copyright (c) 2025 BVK Chaitanya

// Package watch holds the per-session watch sets and the rules that decide
// when a watched price has crossed one of its bounds.
package watch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidBound   = errors.New("value must be greater than 0")
	ErrNoPendingWatch = errors.New("no watch is waiting for this bound")
	ErrInvalidSymbol  = errors.New("invalid ticker symbol")
)

// SessionID identifies one subscriber conversation. Telegram chat ids are
// used as-is.
type SessionID int64

// Watch is a single (symbol, lower, upper) monitoring request. Bounds are nil
// until they are set and never change afterwards.
type Watch struct {
	ID      uuid.UUID
	Session SessionID
	Symbol  string

	Lower *float64
	Upper *float64

	// Armed is true once the watch has all its bounds and takes part in
	// evaluation.
	Armed bool

	CreatedAt time.Time
}

// Handle identifies the watch returned by Store.AddWatch.
type Handle struct {
	Session SessionID
	ID      uuid.UUID
}

func (w *Watch) String() string {
	return fmt.Sprintf("%s[%s..%s]", w.Symbol, formatBound(w.Lower), formatBound(w.Upper))
}

func formatBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

// NormalizeSymbol trims and upper-cases a user supplied ticker. Tickers are
// limited to ASCII letters, digits, '-' and '_'.
func NormalizeSymbol(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) == 0 {
		return "", fmt.Errorf("ticker cannot be empty: %w", ErrInvalidSymbol)
	}
	if len(s) > 32 {
		return "", fmt.Errorf("ticker %q is too long: %w", s, ErrInvalidSymbol)
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return "", fmt.Errorf("ticker %q has non-latin characters: %w", s, ErrInvalidSymbol)
		}
	}
	return s, nil
}
