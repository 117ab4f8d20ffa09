// Copyright (c) 2025 BVK Chaitanya

// Package envfile loads KEY=VALUE assignments from a dotenv file into the
// process environment.
package envfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

func (v *options) searchPaths(filename string) ([]string, error) {
	var fpaths []string
	if v.cwd {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		fpaths = append(fpaths, filepath.Join(cwd, filename))
		if v.parents {
			last, dir := cwd, filepath.Dir(cwd)
			for dir != last {
				fpaths = append(fpaths, filepath.Join(dir, filename))
				last, dir = dir, filepath.Dir(dir)
			}
		}
	}
	if v.home || len(fpaths) == 0 {
		user, err := user.Current()
		if err != nil {
			return nil, err
		}
		if len(user.HomeDir) == 0 {
			return nil, fmt.Errorf("could not determine current user's home directory")
		}
		if p := filepath.Join(user.HomeDir, filename); !slices.Contains(fpaths, p) {
			fpaths = append(fpaths, p)
		}
	}
	return fpaths, nil
}

// UpdateEnv updates current process's environment with the values read from
// the first env file found in the search path and returns the file path. An
// empty path and nil error are returned if no file is found.
//
// The user's home directory is searched by default. Search locations and other
// behaviors can be changed by the input options. File syntax is the dotenv
// format, which allows comments, quoted values and the export keyword.
func UpdateEnv(filename string, opts ...Option) (string, error) {
	if strings.ContainsRune(filename, os.PathSeparator) {
		return "", fmt.Errorf("file name contains path separator: %w", os.ErrInvalid)
	}
	var fopts options
	for _, opt := range opts {
		if err := opt(&fopts); err != nil {
			return "", err
		}
	}
	fpaths, err := fopts.searchPaths(filename)
	if err != nil {
		return "", err
	}
	for _, fpath := range fpaths {
		fp, err := os.Open(fpath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return "", err
			}
			continue
		}
		defer fp.Close()

		values, err := godotenv.Parse(fp)
		if err != nil {
			return "", fmt.Errorf("could not parse env file %q: %w", fpath, err)
		}
		if err := fopts.setenv(values); err != nil {
			return "", fmt.Errorf("env file %q: %w", fpath, err)
		}
		slog.Debug("loaded environment variables", "file", fpath, "count", len(values))
		return fpath, nil
	}
	return "", nil
}

func (v *options) setenv(values map[string]string) error {
	for key, value := range values {
		if !nameRe.MatchString(key) {
			return fmt.Errorf("invalid environment variable name %q: %w", key, os.ErrInvalid)
		}
		key = v.prefix + key
		if len(os.Getenv(key)) != 0 {
			if !v.overwrite {
				continue
			}
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}
