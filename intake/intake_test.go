// Copyright (c) 2025 BVK Chaitanya

package intake

import (
	"testing"

	"github.com/bvk/pricebot/watch"
	"github.com/stretchr/testify/require"
)

func TestFormFlow(t *testing.T) {
	t.Parallel()

	store := watch.NewStore()
	form := New(store, "USD")
	const id watch.SessionID = 100

	r := form.Handle(id, "BTC")
	require.Contains(t, r.Text, "/start")
	require.Equal(t, Inactive, form.State(id))

	r = form.Start(id)
	require.Contains(t, r.Text, "USD")
	require.Equal(t, AwaitSymbol, form.State(id))

	r = form.Handle(id, "бтк")
	require.Equal(t, "Please enter the ticker symbol in latin letters, for example BTC.", r.Text)
	require.Equal(t, AwaitSymbol, form.State(id))
	require.True(t, store.IsEmpty(id))

	r = form.Handle(id, " btc ")
	require.Contains(t, r.Text, "BTC")
	require.Equal(t, AwaitLower, form.State(id))

	r = form.Handle(id, "ten")
	require.Equal(t, ErrNotANumber.Error(), r.Text)
	require.Equal(t, AwaitLower, form.State(id))

	r = form.Handle(id, "-5")
	require.Equal(t, "value must be greater than 0", r.Text)
	require.Equal(t, AwaitLower, form.State(id))

	form.Handle(id, "10000")
	require.Equal(t, AwaitUpper, form.State(id))
	require.Empty(t, store.Snapshot(id))

	r = form.Handle(id, "0")
	require.Equal(t, "value must be greater than 0", r.Text)
	require.Equal(t, AwaitUpper, form.State(id))

	r = form.Handle(id, "70000.5")
	require.Equal(t, "Pair added! Do you want to add another pair? Yes/No", r.Text)
	require.Equal(t, []string{Yes, No}, r.Choices)
	require.Equal(t, AwaitMore, form.State(id))

	snap := store.Snapshot(id)
	require.Len(t, snap, 1)
	require.Equal(t, "BTC", snap[0].Symbol)
	require.Equal(t, 10000.0, *snap[0].Lower)
	require.Equal(t, 70000.5, *snap[0].Upper)

	r = form.Handle(id, "maybe")
	require.Equal(t, "Please answer Yes or No.", r.Text)
	require.Equal(t, AwaitMore, form.State(id))

	form.Handle(id, "yes")
	require.Equal(t, AwaitSymbol, form.State(id))
	form.Handle(id, "ETH")
	form.Handle(id, "1000")
	form.Handle(id, "5000")

	r = form.Handle(id, "NO")
	require.Equal(t, "Watching 2 pair(s). You will be notified when a bound is crossed.", r.Text)
	require.Equal(t, Inactive, form.State(id))
}

func TestFormStartDropsUnfinishedWatch(t *testing.T) {
	t.Parallel()

	store := watch.NewStore()
	form := New(store, "USD")
	const id watch.SessionID = 200

	form.Start(id)
	form.Handle(id, "BTC")
	form.Handle(id, "1")
	form.Handle(id, "2")
	form.Handle(id, Yes)
	form.Handle(id, "ETH")
	form.Handle(id, "10")

	form.Start(id)
	all := store.List(id)
	require.Len(t, all, 1)
	require.Equal(t, "BTC", all[0].Symbol)
	require.True(t, all[0].Armed)
}

func TestFormCancel(t *testing.T) {
	t.Parallel()

	store := watch.NewStore()
	form := New(store, "USD")
	const id watch.SessionID = 300

	form.Start(id)
	form.Handle(id, "BTC")
	form.Handle(id, "1")
	form.Handle(id, "2")
	form.Handle(id, Yes)
	form.Handle(id, "ETH")

	require.Equal(t, 2, form.Cancel(id))
	require.Equal(t, Inactive, form.State(id))
	require.True(t, store.IsEmpty(id))
}

func TestFormLostPendingWatch(t *testing.T) {
	t.Parallel()

	store := watch.NewStore()
	form := New(store, "USD")
	const id watch.SessionID = 400

	form.Start(id)
	form.Handle(id, "BTC")
	store.Reset(id)

	r := form.Handle(id, "10")
	require.Contains(t, r.Text, "ticker symbol")
	require.Equal(t, AwaitSymbol, form.State(id))
}

func TestFormSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	store := watch.NewStore()
	form := New(store, "USD")

	form.Start(1)
	form.Start(2)
	form.Handle(1, "BTC")
	require.Equal(t, AwaitLower, form.State(1))
	require.Equal(t, AwaitSymbol, form.State(2))

	form.Handle(2, "ETH")
	form.Handle(1, "5")
	require.Equal(t, AwaitUpper, form.State(1))
	require.Equal(t, AwaitLower, form.State(2))

	p, ok := store.Pending(2)
	require.True(t, ok)
	require.Nil(t, p.Lower)
}
