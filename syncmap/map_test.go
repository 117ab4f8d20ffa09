// Copyright (c) 2025 BVK Chaitanya

package syncmap

import (
	"slices"
	"testing"
)

func TestMap(t *testing.T) {
	var m Map[int64, string]

	if _, ok := m.Load(1); ok {
		t.Fatalf("empty map must not have keys")
	}

	v, loaded := m.LoadOrCreate(1, func() string { return "one" })
	if loaded || v != "one" {
		t.Fatalf("want newly created value, got %q (loaded=%v)", v, loaded)
	}
	v, loaded = m.LoadOrCreate(1, func() string { return "uno" })
	if !loaded || v != "one" {
		t.Fatalf("want existing value, got %q (loaded=%v)", v, loaded)
	}

	m.Store(2, "two")
	keys := slices.Sorted(m.Keys())
	if !slices.Equal(keys, []int64{1, 2}) {
		t.Fatalf("unexpected keys %v", keys)
	}

	n := 0
	for range m.Range {
		n++
	}
	if n != 2 {
		t.Fatalf("want 2 entries, got %d", n)
	}

	if old, ok := m.LoadAndDelete(2); !ok || old != "two" {
		t.Fatalf("LoadAndDelete returned %q %v", old, ok)
	}
}
