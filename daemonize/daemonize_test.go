// Copyright (c) 2025 BVK Chaitanya

package daemonize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChildEnv(t *testing.T) {
	environ := []string{"HOME=/home/u", EnvKey + "=1", "API_KEY=x"}
	env := childEnv(environ, 42)
	require.Equal(t, []string{"HOME=/home/u", "API_KEY=x", EnvKey + "=42"}, env)

	// Input slice is not modified.
	require.Equal(t, EnvKey+"=1", environ[1])
}

func TestIsBackground(t *testing.T) {
	t.Setenv(EnvKey, "")
	require.False(t, IsBackground())

	t.Setenv(EnvKey, "123")
	require.True(t, IsBackground())
}
