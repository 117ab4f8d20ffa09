// Copyright (c) 2023 BVK Chaitanya

// Package server wires the watch store, the monitor runtime, the intake form
// and the telegram bot into one service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bvk/pricebot/gobs"
	"github.com/bvk/pricebot/intake"
	"github.com/bvk/pricebot/kvutil"
	"github.com/bvk/pricebot/monitor"
	"github.com/bvk/pricebot/quote"
	"github.com/bvk/pricebot/telegram"
	"github.com/bvk/pricebot/watch"
	"github.com/bvkgo/kv"
)

const StateKey = "/server/state"

type Server struct {
	db kv.Database

	opts Options

	startedAt time.Time

	state *gobs.ServerState

	store *watch.Store

	form *intake.Form

	runtime *monitor.Runtime

	telegramClient *telegram.Client
}

// New creates the service. Telegram bot is not started when secrets is nil;
// notifications are only logged in that case.
func New(ctx context.Context, db kv.Database, fetcher quote.Fetcher, secrets *telegram.Secrets, opts *Options) (_ *Server, status error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	state, err := kvutil.LoadDB(ctx, db, StateKey, func() *gobs.ServerState { return new(gobs.ServerState) })
	if err != nil {
		return nil, fmt.Errorf("could not load server state: %w", err)
	}
	restarted := state.NumStarts > 0

	s := &Server{
		db:        db,
		opts:      *opts,
		startedAt: time.Now(),
		state:     state,
		store:     watch.NewStore(),
	}
	s.form = intake.New(s.store, opts.Currency)

	s.state.NumStarts++
	s.state.LastStartedAt = s.startedAt
	if err := kvutil.SetDB(ctx, db, StateKey, s.state); err != nil {
		return nil, fmt.Errorf("could not save server state: %w", err)
	}

	var notifier monitor.Notifier = monitor.NotifierFunc(logNotify)
	if secrets != nil {
		client, err := telegram.New(ctx, db, secrets)
		if err != nil {
			return nil, fmt.Errorf("could not create telegram client: %w", err)
		}
		defer func() {
			if status != nil {
				client.Close()
			}
		}()
		s.telegramClient = client
		notifier = client
	}

	mopts := &monitor.Options{
		Currency:         opts.Currency,
		PollInterval:     opts.PollInterval,
		FetchParallelism: opts.FetchParallelism,
	}
	runtime, err := monitor.New(s.store, fetcher, notifier, mopts)
	if err != nil {
		return nil, err
	}
	s.runtime = runtime

	if s.telegramClient != nil {
		if err := s.setupTelegram(ctx); err != nil {
			runtime.Close()
			return nil, err
		}
		if err := s.telegramClient.Start(); err != nil {
			runtime.Close()
			return nil, err
		}
		if restarted && opts.AnnounceRestart {
			s.telegramClient.Broadcast(ctx, "Pricebot was restarted and all watched pairs were lost. Send /start to add them again.")
		}
	}
	return s, nil
}

// Close stops the service. Cycles in progress are completed first.
func (s *Server) Close() error {
	s.runtime.Close()
	if s.telegramClient != nil {
		s.telegramClient.Close()
	}

	s.state.LastStoppedAt = time.Now()
	if err := kvutil.SetDB(context.Background(), s.db, StateKey, s.state); err != nil {
		slog.Warn("could not save server state (ignored)", "err", err)
	}
	return nil
}

func (s *Server) Store() *watch.Store {
	return s.store
}

func (s *Server) Form() *intake.Form {
	return s.form
}

func (s *Server) Runtime() *monitor.Runtime {
	return s.runtime
}

func logNotify(ctx context.Context, n *monitor.Notification) error {
	slog.Info("notification", "session", n.Session, "symbol", n.Watch.Symbol, "message", n.String())
	return nil
}
