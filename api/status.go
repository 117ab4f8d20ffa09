// Copyright (c) 2025 BVK Chaitanya

package api

import "time"

const StatusPath = "/pricebot/status"

type StatusRequest struct {
}

type StatusResponseItem struct {
	Session int64
	State   string

	NumArmed   int
	NumPending int

	Cycles      int64
	LastCycleAt time.Time
}

type StatusResponse struct {
	Currency     string
	PollInterval time.Duration

	StartedAt time.Time

	Sessions []*StatusResponseItem
}
