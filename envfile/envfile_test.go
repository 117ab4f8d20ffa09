// Copyright (c) 2025 BVK Chaitanya

package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(cwd) })
}

func TestUpdateEnv(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o700))

	content := "# pricebot settings\nAPI_KEY=\"secret key\"\nexport BOT_TOKEN=123:abc\nCURRENCY=EUR\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.env"), []byte(content), 0o600))

	chdir(t, sub)
	t.Setenv("PB_API_KEY", "")
	t.Setenv("PB_BOT_TOKEN", "")
	t.Setenv("PB_CURRENCY", "USD")

	fpath, err := UpdateEnv("test.env", SearchCurrentDir(true), VariableNamePrefix("PB_"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "test.env"), fpath)

	require.Equal(t, "secret key", os.Getenv("PB_API_KEY"))
	require.Equal(t, "123:abc", os.Getenv("PB_BOT_TOKEN"))
	// Existing values are kept unless overwrite is requested.
	require.Equal(t, "USD", os.Getenv("PB_CURRENCY"))

	_, err = UpdateEnv("test.env", SearchCurrentDir(true), VariableNamePrefix("PB_"), OverwriteIfExists(true))
	require.NoError(t, err)
	require.Equal(t, "EUR", os.Getenv("PB_CURRENCY"))
}

func TestUpdateEnvErrors(t *testing.T) {
	_, err := UpdateEnv("a/b.env")
	require.ErrorIs(t, err, os.ErrInvalid)

	_, err = UpdateEnv("x.env", VariableNamePrefix("1bad"))
	require.ErrorIs(t, err, os.ErrInvalid)

	chdir(t, t.TempDir())
	fpath, err := UpdateEnv("does-not-exist.env", SearchCurrentDir(false))
	require.NoError(t, err)
	require.Empty(t, fpath)
}

func TestSearchPaths(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	cwd, err := os.Getwd()
	require.NoError(t, err)

	var cwdOnly options
	require.NoError(t, SearchCurrentDir(false)(&cwdOnly))
	paths, err := cwdOnly.searchPaths("x.env")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(cwd, "x.env")}, paths)

	var withParents options
	require.NoError(t, SearchCurrentDir(true)(&withParents))
	paths, err = withParents.searchPaths("x.env")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cwd, "x.env"), paths[0])
	require.Equal(t, filepath.Join(filepath.Dir(cwd), "x.env"), paths[1])

	// Home directory is the fallback when nothing else is searched.
	var none options
	paths, err = none.searchPaths("x.env")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.NotEqual(t, filepath.Join(cwd, "x.env"), paths[0])
}
