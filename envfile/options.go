// Copyright (c) 2025 BVK Chaitanya

package envfile

import (
	"fmt"
	"os"
	"regexp"
)

// nameRe matches valid variable names and name prefixes.
var nameRe = regexp.MustCompile("^[a-zA-Z][0-9a-zA-Z_]*$")

type options struct {
	// prefix is prepended to every variable name read from the file.
	prefix string

	cwd     bool
	parents bool
	home    bool

	// overwrite replaces variables that are already set to a non-empty value.
	overwrite bool
}

// Option customizes UpdateEnv.
type Option func(*options) error

// SearchCurrentDir looks for the file in the working directory. With
// parents set, the directories above it are searched too, nearest first.
func SearchCurrentDir(parents bool) Option {
	return func(opts *options) error {
		opts.cwd = true
		opts.parents = parents
		return nil
	}
}

// SearchHomeDir adds the home directory as the last place to look. It is
// also the only place when no other option picks a location.
func SearchHomeDir() Option {
	return func(opts *options) error {
		opts.home = true
		return nil
	}
}

// VariableNamePrefix renames every variable from the file to prefix+NAME.
func VariableNamePrefix(prefix string) Option {
	return func(opts *options) error {
		if !nameRe.MatchString(prefix) {
			return fmt.Errorf("invalid variable name prefix %q: %w", prefix, os.ErrInvalid)
		}
		opts.prefix = prefix
		return nil
	}
}

// OverwriteIfExists controls whether values from the file replace variables
// that already have a value. Existing values are kept by default.
func OverwriteIfExists(overwrite bool) Option {
	return func(opts *options) error {
		opts.overwrite = overwrite
		return nil
	}
}
