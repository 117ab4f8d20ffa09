// Copyright (c) 2025 BVK Chaitanya

// Package config holds the process-wide settings. Settings are read once at
// startup and never change afterwards.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bvk/pricebot/envfile"
	"github.com/bvk/pricebot/telegram"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFileName    = "pricebot.yaml"
	DefaultEnvFileName = ".env"
)

type CoinMarketCap struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// RequestsPerMinute limits the outgoing request rate. Zero disables the
	// limit.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type Config struct {
	DataDir string `yaml:"data_dir"`

	// ListenAddress is the host:port of the local http api.
	ListenAddress string `yaml:"listen_address"`

	// Currency is the quote currency for all prices.
	Currency string `yaml:"currency"`

	PollInterval time.Duration `yaml:"poll_interval"`

	// CacheTTL is the time a fetched price is reused for other watches of
	// the same symbol. Zero disables the cache.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	FetchParallelism int `yaml:"fetch_parallelism"`

	// AnnounceRestart sends a message to all known chats on startup, since
	// watches don't survive restarts.
	AnnounceRestart bool `yaml:"announce_restart"`

	CoinMarketCap CoinMarketCap `yaml:"coinmarketcap"`

	Telegram telegram.Secrets `yaml:"telegram"`
}

// Default returns the configuration with all defaults filled in.
func Default() *Config {
	c := new(Config)
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(os.Getenv("HOME"), ".pricebot")
	}
	if c.ListenAddress == "" {
		c.ListenAddress = "127.0.0.1:10100"
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.FetchParallelism == 0 {
		c.FetchParallelism = 4
	}
	if c.CoinMarketCap.BaseURL == "" {
		c.CoinMarketCap.BaseURL = "https://pro-api.coinmarketcap.com"
	}
	if c.CoinMarketCap.RequestsPerMinute == 0 {
		c.CoinMarketCap.RequestsPerMinute = 30
	}
}

// Check validates the configuration. Credentials are not checked here
// because not every command needs them.
func (c *Config) Check() error {
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		return fmt.Errorf("currency cannot be empty: %w", os.ErrInvalid)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %w", os.ErrInvalid)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative: %w", os.ErrInvalid)
	}
	if c.FetchParallelism <= 0 {
		return fmt.Errorf("fetch parallelism must be positive: %w", os.ErrInvalid)
	}
	if c.CoinMarketCap.RequestsPerMinute < 0 {
		return fmt.Errorf("requests per minute cannot be negative: %w", os.ErrInvalid)
	}
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.ListenAddress, err)
	}
	return nil
}

// TCPAddr returns the listen address of the http api.
func (c *Config) TCPAddr() (*net.TCPAddr, error) {
	return net.ResolveTCPAddr("tcp", c.ListenAddress)
}

// LoadFile overwrites the configuration with the values from a YAML file.
func (c *Config) LoadFile(fpath string) error {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("could not parse config file %q: %w", fpath, err)
	}
	return nil
}

// ApplyEnv overwrites the configuration with the values of the environment
// variables that are set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"PRICEBOT_DATA_DIR":       &c.DataDir,
		"PRICEBOT_LISTEN_ADDRESS": &c.ListenAddress,
		"CONVERT_TO_CURRENCY":     &c.Currency,
		"API_KEY":                 &c.CoinMarketCap.APIKey,
		"CMC_BASE_URL":            &c.CoinMarketCap.BaseURL,
		"BOT_TOKEN":               &c.Telegram.BotToken,
	}
	for key, p := range strs {
		if v := getenv(key); v != "" {
			*p = v
		}
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL": &c.PollInterval,
		"CACHE_TTL":     &c.CacheTTL,
	}
	for key, p := range durations {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid duration in %s: %w", key, err)
			}
			*p = d
		}
	}

	ints := map[string]*int{
		"FETCH_PARALLELISM":   &c.FetchParallelism,
		"REQUESTS_PER_MINUTE": &c.CoinMarketCap.RequestsPerMinute,
	}
	for key, p := range ints {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid number in %s: %w", key, err)
			}
			*p = n
		}
	}

	if v := getenv("ALLOWED_USERS"); v != "" {
		var users []string
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimPrefix(strings.TrimSpace(u), "@"); u != "" {
				users = append(users, u)
			}
		}
		c.Telegram.AllowedUsers = users
	}
	return nil
}

// Load builds the configuration from the defaults, the YAML file and the
// environment, in that order. An empty fpath selects the default file in
// the data directory, which is optional. Environment is updated with the
// dotenv file from the current directory or its parents first.
func Load(fpath string) (*Config, error) {
	if _, err := envfile.UpdateEnv(DefaultEnvFileName, envfile.SearchCurrentDir(true)); err != nil {
		return nil, fmt.Errorf("could not load env file: %w", err)
	}

	c := new(Config)
	// Data directory from the environment decides the default file location.
	c.DataDir = os.Getenv("PRICEBOT_DATA_DIR")
	c.setDefaults()

	optional := len(fpath) == 0
	if optional {
		fpath = filepath.Join(c.DataDir, DefaultFileName)
	}
	if err := c.LoadFile(fpath); err != nil {
		if !optional || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	c.setDefaults()
	return c, nil
}
