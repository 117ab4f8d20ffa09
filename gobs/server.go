// Copyright (c) 2023 BVK Chaitanya

package gobs

import "time"

// ServerState is saved in the database across restarts. Watches are never
// saved.
type ServerState struct {
	NumStarts int64

	LastStartedAt time.Time
	LastStoppedAt time.Time
}
