// Package config loads the TOML run configuration via spf13/viper, mirroring
// the defaults-then-unmarshal pattern of
// adred-codev-ws_poc/go-server-3/internal/config/config.go, adapted from a
// WebSocket server's config surface to redline's connection/benchmark/
// confirmations/data sections.
package config

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/viper"
)

// Config is the full run configuration.
type Config struct {
	Gasless       bool             `mapstructure:"gasless"`
	Parallelism   uint8            `mapstructure:"parallelism"`
	Payers        uint8            `mapstructure:"payers"`
	Keypairs      string           `mapstructure:"keypairs"`
	Authority     string           `mapstructure:"authority"`
	Connection    ConnectionConfig `mapstructure:"connection"`
	Benchmark     BenchmarkConfig  `mapstructure:"benchmark"`
	Confirmations Confirmations    `mapstructure:"confirmations"`
	Data          DataConfig       `mapstructure:"data"`
}

type ConnectionConfig struct {
	ChainURL             string `mapstructure:"chain-url"`
	EphemURL             string `mapstructure:"ephem-url"`
	EphemWSURL           string `mapstructure:"ephem-ws-url"`
	HTTPConnectionType   string `mapstructure:"http-connection-type"`
	HTTPConnectionsCount int    `mapstructure:"http-connections-count"`
	WSConnectionsCount   int    `mapstructure:"ws-connections-count"`
}

type BenchmarkConfig struct {
	Iterations      uint64    `mapstructure:"iterations"`
	Rate            uint32    `mapstructure:"rate"`
	Concurrency     int       `mapstructure:"concurrency"`
	PreflightCheck  bool      `mapstructure:"preflight-check"`
	CloneFrequencyMs uint64   `mapstructure:"clone-frequency-ms"`
	AccountsCount   uint8     `mapstructure:"accounts-count"`
	Mode            BenchMode `mapstructure:"mode"`
}

type Confirmations struct {
	SubscribeToAccounts   bool `mapstructure:"subscribe-to-accounts"`
	SubscribeToSignatures bool `mapstructure:"subscribe-to-signatures"`
	GetSignatureStatus    bool `mapstructure:"get-signature-status"`
	EnforceTotalSync      bool `mapstructure:"enforce-total-sync"`
}

type DataConfig struct {
	AccountEncoding string `mapstructure:"account-encoding"`
	AccountSize     uint32 `mapstructure:"account-size"`
}

// Load reads a TOML file at path, applies defaults for anything unset, and
// validates the result. Field names are matched case-insensitively via
// viper/mapstructure's default key-folding, honoring kebab-case
// surface.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("gasless", false)
	v.SetDefault("parallelism", 1)
	v.SetDefault("payers", 1)
	v.SetDefault("connection.http-connection-type", "http1")
	v.SetDefault("connection.http-connections-count", 8)
	v.SetDefault("connection.ws-connections-count", 4)
	v.SetDefault("benchmark.iterations", 1000)
	v.SetDefault("benchmark.rate", 100)
	v.SetDefault("benchmark.concurrency", 64)
	v.SetDefault("benchmark.preflight-check", false)
	v.SetDefault("benchmark.clone-frequency-ms", 0)
	v.SetDefault("benchmark.accounts-count", 4)
	v.SetDefault("confirmations.subscribe-to-accounts", true)
	v.SetDefault("confirmations.subscribe-to-signatures", false)
	v.SetDefault("confirmations.get-signature-status", false)
	v.SetDefault("confirmations.enforce-total-sync", false)
	v.SetDefault("data.account-encoding", "base64")
	v.SetDefault("data.account-size", 128)

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants that must be fatal before any
// network I/O is attempted.
func (c *Config) Validate() error {
	if c.Parallelism == 0 {
		return fmt.Errorf("config: parallelism must be >= 1")
	}
	if c.Payers == 0 {
		return fmt.Errorf("config: payers must be >= 1")
	}
	if c.Keypairs == "" {
		return fmt.Errorf("config: keypairs path is required")
	}
	if c.Authority == "" {
		return fmt.Errorf("config: authority is required")
	}
	if c.Connection.EphemURL == "" {
		return fmt.Errorf("config: connection.ephem-url is required")
	}
	if c.Benchmark.CloneFrequencyMs > 0 && c.Connection.ChainURL == "" {
		return fmt.Errorf("config: connection.chain-url is required when benchmark.clone-frequency-ms > 0")
	}
	switch c.Connection.HTTPConnectionType {
	case "http1", "http2":
	default:
		return fmt.Errorf("config: connection.http-connection-type must be http1 or http2, got %q", c.Connection.HTTPConnectionType)
	}
	if c.Connection.HTTPConnectionsCount == 0 {
		return fmt.Errorf("config: connection.http-connections-count must be >= 1")
	}
	if c.Confirmations.SubscribeToAccounts || c.Confirmations.SubscribeToSignatures {
		if c.Connection.WSConnectionsCount == 0 {
			return fmt.Errorf("config: connection.ws-connections-count must be >= 1 when subscriptions are enabled")
		}
	}
	switch c.Data.AccountEncoding {
	case "base58", "base64", "base64+zstd":
	default:
		return fmt.Errorf("config: data.account-encoding must be base58, base64 or base64+zstd, got %q", c.Data.AccountEncoding)
	}
	switch c.Data.AccountSize {
	case 128, 512, 2048, 8192:
	default:
		return fmt.Errorf("config: data.account-size must be one of 128/512/2048/8192, got %d", c.Data.AccountSize)
	}
	if err := c.Benchmark.Mode.Validate(); err != nil {
		return fmt.Errorf("config: benchmark.mode: %w", err)
	}
	return nil
}

// EphemWSEndpoint returns the WebSocket endpoint to use for subscriptions:
// the explicit ephem-ws-url if set, else the ephem-url with its port
// incremented by one.
func (c *Config) EphemWSEndpoint() (string, error) {
	if c.Connection.EphemWSURL != "" {
		return c.Connection.EphemWSURL, nil
	}
	u, err := url.Parse(c.Connection.EphemURL)
	if err != nil {
		return "", fmt.Errorf("config: parse ephem-url: %w", err)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "80"
		if u.Scheme == "https" {
			portStr = "443"
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("config: parse ephem-url port: %w", err)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	u.Scheme = scheme
	u.Host = fmt.Sprintf("%s:%d", host, port+1)
	return u.String(), nil
}
