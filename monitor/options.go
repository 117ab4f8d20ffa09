// Copyright (c) 2025 BVK Chaitanya

package monitor

import (
	"fmt"
	"os"
	"time"
)

type Options struct {
	// Currency is the quote currency of all fetched prices. It is only used
	// in the notification texts.
	Currency string

	// PollInterval is the sleep time between two cycles of a session.
	PollInterval time.Duration

	// FetchParallelism limits the number of concurrent price fetches in a
	// single cycle. One makes the fetches sequential.
	FetchParallelism int

	// NotifyTimeout limits the time taken to deliver one notification.
	NotifyTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.Currency == "" {
		v.Currency = "USD"
	}
	if v.PollInterval == 0 {
		v.PollInterval = 10 * time.Second
	}
	if v.FetchParallelism == 0 {
		v.FetchParallelism = 4
	}
	if v.NotifyTimeout == 0 {
		v.NotifyTimeout = 30 * time.Second
	}
}

func (v *Options) Check() error {
	if v.PollInterval < 0 {
		return fmt.Errorf("poll interval cannot be negative: %w", os.ErrInvalid)
	}
	if v.FetchParallelism < 0 {
		return fmt.Errorf("fetch parallelism cannot be negative: %w", os.ErrInvalid)
	}
	if v.NotifyTimeout < 0 {
		return fmt.Errorf("notify timeout cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
