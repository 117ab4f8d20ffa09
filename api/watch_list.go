// Copyright (c) 2025 BVK Chaitanya

package api

import "time"

const WatchListPath = "/pricebot/watch/list"

type WatchListRequest struct {
	// Session limits the response to one session when non-zero.
	Session int64
}

type WatchListResponseItem struct {
	ID      string
	Session int64
	Symbol  string

	Lower *float64
	Upper *float64

	Armed     bool
	CreatedAt time.Time
}

type WatchListResponse struct {
	Currency string

	Watches []*WatchListResponseItem
}
