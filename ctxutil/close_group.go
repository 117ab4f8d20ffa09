// Copyright (c) 2025 BVK Chaitanya

package ctxutil

import (
	"context"
	"os"
	"sync"
)

// CloseGroup runs goroutines that share one close signal. Close cancels the
// shared context with os.ErrClosed and waits for every goroutine to return.
//
// Zero value is ready to use.
type CloseGroup struct {
	closeCtx  context.Context
	causeFunc context.CancelCauseFunc

	wg sync.WaitGroup

	once sync.Once

	mu     sync.Mutex
	closed bool
}

func (cg *CloseGroup) init() {
	cg.closeCtx, cg.causeFunc = context.WithCancelCause(context.Background())
}

// Close cancels the group context and waits for all goroutines. Goroutines
// cannot be added after Close.
func (cg *CloseGroup) Close() {
	cg.once.Do(cg.init)

	cg.mu.Lock()
	cg.closed = true
	cg.mu.Unlock()

	cg.causeFunc(os.ErrClosed)
	cg.wg.Wait()
}

// Context returns the group context which is canceled by Close.
func (cg *CloseGroup) Context() context.Context {
	cg.once.Do(cg.init)
	return cg.closeCtx
}

// Go runs f in a new goroutine with the group context. Returns false without
// running f if the group is already closed.
func (cg *CloseGroup) Go(f func(ctx context.Context)) bool {
	cg.once.Do(cg.init)

	cg.mu.Lock()
	defer cg.mu.Unlock()

	if cg.closed {
		return false
	}
	cg.wg.Add(1)
	go func() {
		defer cg.wg.Done()
		f(cg.closeCtx)
	}()
	return true
}
