// Copyright (c) 2025 BVK Chaitanya

package watch

import (
	"errors"

	"github.com/bvk/pricebot/quote"
)

type OutcomeKind int

const (
	Continue OutcomeKind = iota
	CrossedLower
	CrossedUpper
	Invalid
)

func (k OutcomeKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case CrossedLower:
		return "crossed-lower"
	case CrossedUpper:
		return "crossed-upper"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// Outcome is the evaluation result for one watch. Price and Bound are only
// meaningful for the crossed kinds.
type Outcome struct {
	Kind  OutcomeKind
	Price float64
	Bound float64
}

// Resolved returns true if the watch must be removed.
func (v Outcome) Resolved() bool {
	return v.Kind != Continue
}

// Evaluate decides what to do with a watch given the result of a price
// fetch. Lower bound is checked before the upper bound so only one crossing
// is ever reported. Comparisons are exact and inclusive.
func Evaluate(w *Watch, price float64, fetchErr error) Outcome {
	if fetchErr != nil {
		if errors.Is(fetchErr, quote.ErrSymbolNotFound) {
			return Outcome{Kind: Invalid}
		}
		return Outcome{Kind: Continue}
	}
	if w.Lower != nil && price <= *w.Lower {
		return Outcome{Kind: CrossedLower, Price: price, Bound: *w.Lower}
	}
	if w.Upper != nil && price >= *w.Upper {
		return Outcome{Kind: CrossedUpper, Price: price, Bound: *w.Upper}
	}
	return Outcome{Kind: Continue, Price: price}
}
