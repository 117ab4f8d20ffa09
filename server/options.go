// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"fmt"
	"os"
	"time"
)

type Options struct {
	// Currency is the quote currency of all prices.
	Currency string

	PollInterval time.Duration

	FetchParallelism int

	// AnnounceRestart sends a message to every known telegram chat on
	// startup.
	AnnounceRestart bool
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
}

func (v *Options) Check() error {
	if v.PollInterval < 0 {
		return fmt.Errorf("poll interval cannot be negative: %w", os.ErrInvalid)
	}
	if v.FetchParallelism < 0 {
		return fmt.Errorf("fetch parallelism cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
