// Copyright (c) 2023 BVK Chaitanya

package cmdutil

import (
	"flag"
	"time"

	"github.com/bvk/pricebot/config"
)

// ServerFlags holds the flags that override the configuration file and the
// environment. Zero values leave the configuration unchanged.
type ServerFlags struct {
	ConfigFile string

	dataDir       string
	listenAddress string
	currency      string
	pollInterval  time.Duration
	cacheTTL      time.Duration
}

func (sf *ServerFlags) SetFlags(fset *flag.FlagSet) {
	fset.StringVar(&sf.ConfigFile, "config", "", "path to the yaml config file (default <data-dir>/pricebot.yaml)")
	fset.StringVar(&sf.dataDir, "data-dir", "", "path to the data directory (default $HOME/.pricebot)")
	fset.StringVar(&sf.listenAddress, "listen-address", "", "host:port for the api endpoint (default 127.0.0.1:10100)")
	fset.StringVar(&sf.currency, "currency", "", "quote currency for the prices (default USD)")
	fset.DurationVar(&sf.pollInterval, "poll-interval", 0, "time between two price checks of a chat (default 10s)")
	fset.DurationVar(&sf.cacheTTL, "cache-ttl", 0, "time a fetched price is reused")
}

// Config loads the configuration and applies the flag overrides on top.
func (sf *ServerFlags) Config() (*config.Config, error) {
	cfg, err := config.Load(sf.ConfigFile)
	if err != nil {
		return nil, err
	}
	if sf.dataDir != "" {
		cfg.DataDir = sf.dataDir
	}
	if sf.listenAddress != "" {
		cfg.ListenAddress = sf.listenAddress
	}
	if sf.currency != "" {
		cfg.Currency = sf.currency
	}
	if sf.pollInterval != 0 {
		cfg.PollInterval = sf.pollInterval
	}
	if sf.cacheTTL != 0 {
		cfg.CacheTTL = sf.cacheTTL
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}
