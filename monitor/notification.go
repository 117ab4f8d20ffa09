// Copyright (c) 2025 BVK Chaitanya

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/bvk/pricebot/watch"
	"github.com/shopspring/decimal"
)

// Notification is sent to a session once for every watch that is resolved.
type Notification struct {
	Session  watch.SessionID
	Watch    watch.Watch
	Outcome  watch.Outcome
	Currency string
	At       time.Time
}

// Notifier delivers notifications to the sessions.
//
//go:generate mockgen -package=monitor -destination=mock_notifier_test.go -source=notification.go Notifier
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n *Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n *Notification) error {
	return f(ctx, n)
}

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// String returns the user facing message text.
func (n *Notification) String() string {
	symbol := n.Watch.Symbol
	switch n.Outcome.Kind {
	case watch.Invalid:
		return fmt.Sprintf("Symbol %s was not found. Stopped watching it.", symbol)
	case watch.CrossedLower:
		return fmt.Sprintf("Current price of %s is %s %s, at or below the minimum %s. Stopped watching %s.",
			symbol, formatFloat(n.Outcome.Price), n.Currency, formatFloat(n.Outcome.Bound), symbol)
	case watch.CrossedUpper:
		return fmt.Sprintf("Current price of %s is %s %s, at or above the maximum %s. Stopped watching %s.",
			symbol, formatFloat(n.Outcome.Price), n.Currency, formatFloat(n.Outcome.Bound), symbol)
	}
	return fmt.Sprintf("Current price of %s is %s %s.", symbol, formatFloat(n.Outcome.Price), n.Currency)
}
