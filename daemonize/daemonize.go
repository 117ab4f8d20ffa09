// Copyright (c) 2023 BVK Chaitanya

// Package daemonize moves the running command into a background process.
package daemonize

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"log/syslog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bvk/pricebot/ctxutil"
	"golang.org/x/sys/unix"
)

// EnvKey is set in the background process to the pid of the process that
// started it. No other program is expected to use this variable.
var EnvKey = "PRICEBOT_DAEMONIZE"

// CheckInterval is the time between two health checks of a new background
// process.
var CheckInterval = time.Second

// Daemonize starts a copy of the current command in the background and exits
// once the copy passes the check. It must be called early, before databases
// are opened or servers are started, because all of that is done again by
// the background copy.
//
// In the foreground process Daemonize either exits with status zero or
// returns the error that stopped the background copy from becoming healthy.
// In the background process it detaches from the terminal session and sends
// the standard logger to syslog.
//
// The background copy has the same arguments and environment, runs in the
// root directory and has its standard streams connected to /dev/null.
func Daemonize(ctx context.Context, check func(context.Context) error) error {
	if !IsBackground() {
		if err := spawn(ctx, check); err != nil {
			return err
		}
		os.Exit(0)
	}
	return detach()
}

// IsBackground returns true in the process started by Daemonize.
func IsBackground() bool {
	return len(os.Getenv(EnvKey)) != 0
}

// childEnv returns the environment for the background process with EnvKey
// set to the parent pid.
func childEnv(environ []string, ppid int) []string {
	prefix := EnvKey + "="
	env := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if !strings.HasPrefix(kv, prefix) {
			env = append(env, kv)
		}
	}
	return append(env, prefix+strconv.Itoa(ppid))
}

func spawn(ctx context.Context, check func(context.Context) error) error {
	binary, err := exec.LookPath(os.Args[0])
	if err != nil {
		return fmt.Errorf("could not find the program binary: %w", err)
	}
	if binary, err = filepath.Abs(binary); err != nil {
		return fmt.Errorf("could not get absolute path of %q: %w", binary, err)
	}

	// SIGCHLD ends the wait early when the background process dies.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGCHLD, os.Interrupt)
	defer stop()

	cmd := &exec.Cmd{
		Path: binary,
		Args: os.Args,
		Env:  childEnv(os.Environ(), os.Getpid()),
		Dir:  "/",
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not start background process: %w", err)
	}
	slog.Info("started background process", "pid", cmd.Process.Pid)

	if check == nil {
		return nil
	}
	if err := ctxutil.Sleep(ctx, CheckInterval); err != nil {
		return fmt.Errorf("background process did not become ready: %w", err)
	}
	err = ctxutil.Retry(ctx, CheckInterval, func() error {
		if err := check(ctx); err != nil {
			slog.Warn("background process is not ready (will retry)", "pid", cmd.Process.Pid, "err", err)
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("background process did not become ready: %w", err)
	}
	return nil
}

func detach() error {
	if _, err := unix.Setsid(); err != nil {
		return fmt.Errorf("could not create a new session: %w", err)
	}
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "pricebot")
	if err != nil {
		return fmt.Errorf("could not connect to syslog: %w", err)
	}
	log.SetOutput(w)
	return nil
}
