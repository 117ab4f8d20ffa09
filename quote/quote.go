// Copyright (c) 2025 BVK Chaitanya

// Package quote defines the price source contract used by the monitor and
// generic wrappers around it.
package quote

import (
	"context"
	"errors"
)

// Failure kinds returned by Fetcher implementations. Callers must use
// errors.Is because implementations wrap them with more context.
var (
	// ErrSymbolNotFound is returned when the price source understood the
	// request but has no data for the ticker.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrTransport covers network, timeout, http status and decoding failures.
	ErrTransport = errors.New("price source transport error")

	// ErrRateLimited is returned when the price source throttles the caller.
	ErrRateLimited = errors.New("price source rate limit")
)

// Fetcher returns the latest price of an upper-case ticker symbol in the
// quote currency fixed for the fetcher's lifetime. Returned prices are finite
// and non-negative.
//
//go:generate mockgen -package=monitor -destination=../monitor/mock_fetcher_test.go github.com/bvk/pricebot/quote Fetcher
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (float64, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, symbol string) (float64, error)

func (f FetcherFunc) Fetch(ctx context.Context, symbol string) (float64, error) {
	return f(ctx, symbol)
}

// IsTransient returns true for failures that should be retried in the next
// polling cycle.
func IsTransient(err error) bool {
	return err != nil && !errors.Is(err, ErrSymbolNotFound)
}
