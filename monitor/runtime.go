// Copyright (c) 2025 BVK Chaitanya

// Package monitor runs one polling task per session that evaluates the
// session's armed watches against the latest prices.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/bvk/pricebot/ctxutil"
	"github.com/bvk/pricebot/quote"
	"github.com/bvk/pricebot/watch"
	"github.com/visvasity/topic"
	"golang.org/x/sync/errgroup"
)

type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// SessionStatus describes the monitoring state of a session.
type SessionStatus struct {
	Session watch.SessionID
	State   State

	NumArmed   int
	NumPending int

	Cycles      int64
	LastCycleAt time.Time
}

type task struct {
	startedAt   time.Time
	cycles      int64
	lastCycleAt time.Time
}

// Runtime owns the watch store, the price fetcher and the notifier for the
// whole process. A session moves to Polling when one of its watches is armed
// and back to Idle when a cycle leaves it with no armed watches.
type Runtime struct {
	cg ctxutil.CloseGroup

	opts Options

	store    *watch.Store
	fetcher  quote.Fetcher
	notifier Notifier

	mu sync.Mutex

	// taskMap holds the sessions in Polling state.
	taskMap map[watch.SessionID]*task
}

func New(store *watch.Store, fetcher quote.Fetcher, notifier Notifier, opts *Options) (_ *Runtime, status error) {
	if store == nil || fetcher == nil || notifier == nil {
		return nil, fmt.Errorf("store, fetcher and notifier are required: %w", os.ErrInvalid)
	}
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	receiver, err := topic.Subscribe(store.Events(), 0, false)
	if err != nil {
		return nil, fmt.Errorf("could not subscribe to watch events: %w", err)
	}
	defer func() {
		if status != nil {
			receiver.Close()
		}
	}()

	r := &Runtime{
		opts:     *opts,
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		taskMap:  make(map[watch.SessionID]*task),
	}

	if !r.cg.Go(func(ctx context.Context) { r.goWatchEvents(ctx, receiver) }) {
		return nil, os.ErrClosed
	}

	// Watches armed before the subscription don't produce events.
	for _, id := range store.Sessions() {
		r.Start(id)
	}
	return r, nil
}

// Close stops all session tasks. A cycle that is in progress is completed
// before its task returns.
func (r *Runtime) Close() error {
	r.cg.Close()
	return nil
}

func (r *Runtime) Options() Options {
	return r.opts
}

func (r *Runtime) Store() *watch.Store {
	return r.store
}

func (r *Runtime) goWatchEvents(ctx context.Context, receiver *topic.Receiver[watch.Event]) {
	defer receiver.Close()

	stopf := context.AfterFunc(ctx, receiver.Close)
	defer stopf()

	for ctx.Err() == nil {
		event, err := receiver.Receive()
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("could not receive watch event (unexpected)", "err", err)
			}
			continue
		}
		slog.Debug("watch is armed", "session", event.Session, "symbol", event.Symbol, "watch", event.WatchID)
		r.Start(event.Session)
	}
}

// Start moves the session into Polling state unless it is already polling
// or has no armed watches. Returns true if a new task was started.
func (r *Runtime) Start(id watch.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.taskMap[id]; ok {
		return false
	}
	if !r.store.HasArmed(id) {
		return false
	}

	t := &task{startedAt: time.Now()}
	if !r.cg.Go(func(ctx context.Context) { r.goPoll(ctx, id, t) }) {
		return false
	}
	r.taskMap[id] = t
	slog.Info("session is polling", "session", id)
	return true
}

// stopIfIdle removes the session task when the session has no armed
// watches. It runs under the runtime lock so that Start either observes the
// task or a new task gets started.
func (r *Runtime) stopIfIdle(id watch.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store.HasArmed(id) {
		return false
	}
	delete(r.taskMap, id)
	slog.Info("session is idle", "session", id)
	return true
}

func (r *Runtime) goPoll(ctx context.Context, id watch.SessionID, t *task) {
	for {
		// Shutdown must not interrupt a cycle half way.
		r.cycle(context.WithoutCancel(ctx), id)

		r.mu.Lock()
		t.cycles++
		t.lastCycleAt = time.Now()
		r.mu.Unlock()

		if r.stopIfIdle(id) {
			return
		}

		if err := ctxutil.Sleep(ctx, r.opts.PollInterval); err != nil {
			r.mu.Lock()
			delete(r.taskMap, id)
			r.mu.Unlock()
			return
		}
	}
}

type fetchResult struct {
	price float64
	err   error
}

// fetch calls the fetcher and converts a panic into a transport error.
func (r *Runtime) fetch(ctx context.Context, symbol string) (result fetchResult) {
	defer func() {
		if v := recover(); v != nil {
			slog.Error("CAUGHT PANIC in price fetcher", "symbol", symbol, "panic", v)
			result = fetchResult{err: fmt.Errorf("price fetcher panic: %v: %w", v, quote.ErrTransport)}
		}
	}()
	price, err := r.fetcher.Fetch(ctx, symbol)
	return fetchResult{price: price, err: err}
}

// cycle evaluates one snapshot of the session's armed watches.
func (r *Runtime) cycle(ctx context.Context, id watch.SessionID) {
	watches := r.store.Snapshot(id)
	if len(watches) == 0 {
		return
	}

	results := make([]fetchResult, len(watches))

	var g errgroup.Group
	g.SetLimit(r.opts.FetchParallelism)
	for i := range watches {
		g.Go(func() error {
			results[i] = r.fetch(ctx, watches[i].Symbol)
			return nil
		})
	}
	g.Wait()

	for i := range watches {
		w := &watches[i]
		res := results[i]

		outcome := watch.Evaluate(w, res.price, res.err)
		if !outcome.Resolved() {
			if res.err != nil {
				slog.Warn("could not fetch the price (will retry)", "session", id, "symbol", w.Symbol, "err", res.err)
			}
			continue
		}

		// A watch removed by someone else was already handled.
		if !r.store.Remove(id, w.ID) {
			continue
		}

		n := &Notification{
			Session:  id,
			Watch:    *w,
			Outcome:  outcome,
			Currency: r.opts.Currency,
			At:       time.Now(),
		}
		slog.Info("watch is resolved", "session", id, "watch", w.ID, "symbol", w.Symbol, "outcome", outcome.Kind, "price", outcome.Price)
		if err := r.notify(ctx, n); err != nil {
			slog.Warn("could not send notification (ignored)", "session", id, "symbol", w.Symbol, "err", err)
		}
	}
}

func (r *Runtime) notify(ctx context.Context, n *Notification) error {
	nctx, cancel := context.WithTimeout(ctx, r.opts.NotifyTimeout)
	defer cancel()

	if err := r.notifier.Notify(nctx, n); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("notification timed out after %s: %w", r.opts.NotifyTimeout, err)
		}
		return err
	}
	return nil
}

// SessionStatus returns the monitoring state of a session.
func (r *Runtime) SessionStatus(id watch.SessionID) *SessionStatus {
	s := &SessionStatus{Session: id}
	for _, w := range r.store.List(id) {
		if w.Armed {
			s.NumArmed++
		} else {
			s.NumPending++
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.taskMap[id]; ok {
		s.State = Polling
		s.Cycles = t.cycles
		s.LastCycleAt = t.lastCycleAt
	}
	return s
}

// Status returns the state of every session that has watches or a running
// task, ordered by session id.
func (r *Runtime) Status() []*SessionStatus {
	ids := r.store.Sessions()

	r.mu.Lock()
	for id := range r.taskMap {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	slices.Sort(ids)
	var result []*SessionStatus
	for _, id := range ids {
		result = append(result, r.SessionStatus(id))
	}
	return result
}
