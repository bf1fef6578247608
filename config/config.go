package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// AuthTokenEnv is consulted when AuthToken is not set in the file.
const AuthTokenEnv = "MARKET_RPC_TOKEN"

// JWTSecretEnv is consulted when JWT.Secret is not set in the file.
const JWTSecretEnv = "MARKET_RPC_JWT_SECRET"

type Config struct {
	RPCAddress           string          `toml:"RPCAddress"`
	RPCRequestsPerMinute float64         `toml:"RPCRequestsPerMinute"`
	RPCBurst             int             `toml:"RPCBurst"`
	DataDir              string          `toml:"DataDir"`
	AddressPrefix        string          `toml:"AddressPrefix"`
	StrictDenom          bool            `toml:"StrictDenom"`
	AuthToken            string          `toml:"AuthToken"`
	JWT                  JWTConfig       `toml:"JWT"`
	IndexerDSN           string          `toml:"IndexerDSN"`
	EventHistory         int             `toml:"EventHistory"`
	Environment          string          `toml:"Environment"`
	LogLevel             string          `toml:"LogLevel"`
	LogFile              LogFileConfig   `toml:"LogFile"`
	Telemetry            TelemetryConfig `toml:"Telemetry"`
}

// LogFileConfig mirrors JSON logs into a size-rotated file. An empty Path
// keeps logging on stdout only.
type LogFileConfig struct {
	Path       string `toml:"Path"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// JWTConfig enables HMAC-signed bearer tokens for mutating RPC methods.
type JWTConfig struct {
	Secret           string `toml:"Secret"`
	Issuer           string `toml:"Issuer"`
	Audience         string `toml:"Audience"`
	ClockSkewSeconds int    `toml:"ClockSkewSeconds"`
}

// TelemetryConfig controls OTLP export of traces and metrics.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
	Headers  string `toml:"Headers"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:           ":8080",
		RPCRequestsPerMinute: 600,
		RPCBurst:             20,
		DataDir:              "./market-data",
		IndexerDSN:           "file:market-events.db?cache=shared",
		EventHistory:         256,
		Environment:          "local",
		LogLevel:             "info",
	}
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.RPCAddress = strings.TrimSpace(c.RPCAddress)
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.AddressPrefix = strings.ToLower(strings.TrimSpace(c.AddressPrefix))
	c.AuthToken = strings.TrimSpace(c.AuthToken)
	if c.AuthToken == "" {
		c.AuthToken = strings.TrimSpace(os.Getenv(AuthTokenEnv))
	}
	c.JWT.Secret = strings.TrimSpace(c.JWT.Secret)
	if c.JWT.Secret == "" {
		c.JWT.Secret = strings.TrimSpace(os.Getenv(JWTSecretEnv))
	}
	c.Environment = strings.TrimSpace(c.Environment)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
