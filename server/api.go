// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/bvk/pricebot/api"
	"github.com/bvk/pricebot/watch"
)

// HandlerMap returns the http api handlers keyed by their paths.
func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		api.WatchListPath: httpPostJSONHandler(s.doWatchList),
		api.StatusPath:    httpPostJSONHandler(s.doStatus),
	}
}

func httpPostJSONHandler[T1 any, T2 any](fun func(context.Context, *T1) (*T2, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "only POST method is allowed", http.StatusMethodNotAllowed)
			return
		}
		if v := r.Header.Get("content-type"); v != "application/json" {
			http.Error(w, "unsupported content type", http.StatusBadRequest)
			return
		}
		req := new(T1)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			http.Error(w, "could not decode request", http.StatusBadRequest)
			return
		}
		resp, err := fun(r.Context(), req)
		if err != nil {
			code := http.StatusInternalServerError
			switch {
			case errors.Is(err, os.ErrInvalid):
				code = http.StatusBadRequest
			case errors.Is(err, os.ErrNotExist):
				code = http.StatusNotFound
			}
			http.Error(w, err.Error(), code)
			return
		}
		w.Header().Set("content-type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("could not encode response (ignored)", "path", r.URL.Path, "err", err)
		}
	})
}

func (s *Server) doWatchList(ctx context.Context, req *api.WatchListRequest) (*api.WatchListResponse, error) {
	sessions := s.store.Sessions()
	if req.Session != 0 {
		sessions = []watch.SessionID{watch.SessionID(req.Session)}
	}

	resp := &api.WatchListResponse{
		Currency: s.opts.Currency,
	}
	for _, id := range sessions {
		for _, w := range s.store.List(id) {
			item := &api.WatchListResponseItem{
				ID:        w.ID.String(),
				Session:   int64(w.Session),
				Symbol:    w.Symbol,
				Lower:     w.Lower,
				Upper:     w.Upper,
				Armed:     w.Armed,
				CreatedAt: w.CreatedAt,
			}
			resp.Watches = append(resp.Watches, item)
		}
	}
	return resp, nil
}

func (s *Server) doStatus(ctx context.Context, req *api.StatusRequest) (*api.StatusResponse, error) {
	resp := &api.StatusResponse{
		Currency:     s.opts.Currency,
		PollInterval: s.opts.PollInterval,
		StartedAt:    s.startedAt,
	}
	for _, st := range s.runtime.Status() {
		item := &api.StatusResponseItem{
			Session:     int64(st.Session),
			State:       st.State.String(),
			NumArmed:    st.NumArmed,
			NumPending:  st.NumPending,
			Cycles:      st.Cycles,
			LastCycleAt: st.LastCycleAt,
		}
		resp.Sessions = append(resp.Sessions, item)
	}
	return resp, nil
}
