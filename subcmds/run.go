// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/bvk/pricebot/coinmarketcap"
	"github.com/bvk/pricebot/ctxutil"
	"github.com/bvk/pricebot/daemonize"
	"github.com/bvk/pricebot/httputil"
	"github.com/bvk/pricebot/quote"
	"github.com/bvk/pricebot/server"
	"github.com/bvk/pricebot/subcmds/cmdutil"
	"github.com/bvk/pricebot/telegram"
	"github.com/bvkgo/kv/kvhttp"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
	"github.com/nightlyone/lockfile"
	"github.com/visvasity/cli"
	"github.com/visvasity/sglog"
)

type Run struct {
	cmdutil.ServerFlags

	background bool

	restart         bool
	shutdownTimeout time.Duration

	noPprof  bool
	noDBAPI  bool
	debugLog bool

	logDir string
}

func (c *Run) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	c.ServerFlags.SetFlags(fset)
	fset.BoolVar(&c.background, "background", false, "runs the daemon in background")
	fset.BoolVar(&c.restart, "restart", false, "when true, kills any old instance")
	fset.DurationVar(&c.shutdownTimeout, "shutdown-timeout", 30*time.Second, "max timeout for shutdown when restarting")
	fset.BoolVar(&c.noPprof, "no-pprof", false, "when true net/http/pprof handler is not registered")
	fset.BoolVar(&c.noDBAPI, "no-db-api", false, "when true the /db/ handler is not registered")
	fset.BoolVar(&c.debugLog, "debug", false, "when true, debug messages are logged")
	fset.StringVar(&c.logDir, "log-dir", "", "path to the log directory (default <data-dir>/logs)")
	return "run", fset, cli.CmdFunc(c.run)
}

func (c *Run) Purpose() string {
	return "Runs pricebot in foreground or background"
}

func (c *Run) Description() string {
	return `

Command "run" starts the pricebot service. Users add (symbol, minimum,
maximum) pairs through the telegram bot and are notified once when the price
of a symbol leaves the range. Watches are kept in memory only; they are lost
when the service restarts.

CONFIGURATION

Settings are read from the defaults, the yaml config file, the environment and
the command-line flags, in that order. Environment variables can also be
placed in a .env file in the current directory or one of its parents. An
example config file is given below:

    currency: USD
    poll_interval: 10s
    coinmarketcap:
      api_key: 11111111-2222-3333-4444-555555555555
    telegram:
      token: 123456:ABCDEF
      allowed_users: [alice, bob]

The same values can be given with the API_KEY, BOT_TOKEN, CONVERT_TO_CURRENCY
and POLL_INTERVAL environment variables. When no telegram token is configured,
notifications are written to the log only.

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := c.ServerFlags.Config()
	if err != nil {
		return err
	}
	if len(cfg.CoinMarketCap.APIKey) == 0 {
		return fmt.Errorf("coinmarketcap api key is required (set API_KEY or coinmarketcap.api_key)")
	}
	var secrets *telegram.Secrets
	if len(cfg.Telegram.BotToken) != 0 {
		secrets = &cfg.Telegram
		if err := secrets.Check(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(cfg.DataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat data directory %q: %w", cfg.DataDir, err)
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return fmt.Errorf("could not create data directory %q: %w", cfg.DataDir, err)
		}
	}
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", cfg.DataDir, err)
	}

	addr, err := cfg.TCPAddr()
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddress, err)
	}

	// Health checker for the background process initialization. We need to
	// verify that responding http server is really our child and not an older
	// instance.
	check := func(ctx context.Context) error {
		client := http.Client{Timeout: time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/ppid", addr.String()))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http status: %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		ppid, err := strconv.Atoi(string(data))
		if err != nil {
			return err
		}
		if ppid != os.Getpid() {
			return fmt.Errorf("is another instance already running? parent mismatch: want %d got %d", os.Getpid(), ppid)
		}
		return nil
	}

	if c.background {
		if err := daemonize.Daemonize(ctx, check); err != nil {
			return err
		}
	}

	if len(c.logDir) == 0 {
		c.logDir = filepath.Join(dataDir, "logs")
	}
	backend, err := newLogBackend(c.logDir, c.debugLog)
	if err != nil {
		return err
	}
	defer backend.Close()
	slog.SetDefault(slog.New(backend.Handler()))

	slog.Info("using data directory", "dir", dataDir, "config", c.ConfigFile, "background", daemonize.IsBackground())

	lockPath := filepath.Join(dataDir, "pricebot.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		if !c.restart {
			return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
		}
		owner, err := flock.GetOwner()
		if err != nil {
			return fmt.Errorf("could not get current owner of the lock file: %w", err)
		}
		if err := owner.Signal(os.Interrupt); err == nil {
			slog.Info("waiting for the previous instance to shutdown")
			if err := ctxutil.RetryTimeout(ctx, time.Second, c.shutdownTimeout, flock.TryLock); err != nil {
				if err := owner.Signal(os.Kill); err != nil {
					return fmt.Errorf("could not kill current owner of the lock file: %w", err)
				}
				ctxutil.Sleep(ctx, time.Millisecond)
			}
		}
		if err := flock.TryLock(); err != nil {
			return fmt.Errorf("could not get lock on file %q after killing previous instance: %w", lockPath, err)
		}
	}
	defer flock.Unlock()

	// Start HTTP server.
	s, err := httputil.New(nil /* opts */)
	if err != nil {
		return err
	}
	defer s.Close()

	tcpServer, err := s.StartTCP(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not start http server on %s: %w", addr, err)
	}
	defer s.Stop(tcpServer)

	if !c.noPprof {
		s.AddHandler("/debug/pprof/heap", pprof.Handler("heap"))
		s.AddHandler("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		s.AddHandler("/debug/pprof/allocs", pprof.Handler("allocs"))
		s.AddHandler("/debug/pprof/block", pprof.Handler("block"))
		s.AddHandler("/debug/pprof/mutex", pprof.Handler("mutex"))
	}

	// Open the database.
	bopts := badger.DefaultOptions(filepath.Join(dataDir, "db"))
	bdb, err := badger.Open(bopts)
	if err != nil {
		return fmt.Errorf("could not open the database: %w", err)
	}
	defer bdb.Close()
	db := kvbadger.New(bdb, isGoodKey)

	if !c.noDBAPI {
		s.AddHandler("/db/", http.StripPrefix("/db", kvhttp.Handler(db)))
	}

	// Price source.
	cmcOpts := []coinmarketcap.Option{
		coinmarketcap.WithBaseURL(cfg.CoinMarketCap.BaseURL),
		coinmarketcap.WithRateLimit(cfg.CoinMarketCap.RequestsPerMinute),
	}
	cmc, err := coinmarketcap.New(cfg.CoinMarketCap.APIKey, cfg.Currency, cmcOpts...)
	if err != nil {
		return fmt.Errorf("could not create coinmarketcap client: %w", err)
	}
	var fetcher quote.Fetcher = cmc
	if cfg.CacheTTL > 0 {
		fetcher = quote.NewCache(cmc, cfg.CacheTTL)
	}

	// Start other services.
	sopts := &server.Options{
		Currency:         cfg.Currency,
		PollInterval:     cfg.PollInterval,
		FetchParallelism: cfg.FetchParallelism,
		AnnounceRestart:  cfg.AnnounceRestart,
	}
	pricebot, err := server.New(ctx, db, fetcher, secrets, sopts)
	if err != nil {
		return err
	}
	defer pricebot.Close()

	// Add pricebot api handlers
	apis := pricebot.HandlerMap()
	for k, v := range apis {
		s.AddHandler(k, v)
	}
	defer func() {
		for k := range apis {
			s.RemoveHandler(k)
		}
	}()

	s.AddHandler("/pid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, fmt.Sprintf("%d", os.Getpid()))
	}))
	s.AddHandler("/ppid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, fmt.Sprintf("%d", os.Getppid()))
	}))

	// Wait for the signals
	slog.Info("started pricebot server", "addr", addr, "currency", cfg.Currency, "telegram", secrets != nil)
	<-ctx.Done()
	slog.Info("pricebot server is shutting down")
	return nil
}

// newLogBackend creates the log directory and a file backend writing into it.
func newLogBackend(logDir string, debug bool) (*sglog.Backend, error) {
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, fmt.Errorf("could not create log directory %q: %w", logDir, err)
	}
	backend := sglog.NewBackend(&sglog.Options{
		LogDirs:    []string{logDir},
		LogLinkDir: logDir,
	})
	if debug {
		backend.SetLevel(slog.LevelDebug)
	}
	return backend, nil
}

func isGoodKey(k string) bool {
	return path.IsAbs(k) && k == path.Clean(k)
}
