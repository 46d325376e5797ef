package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	defaultPort = 8080

	// feed defaults mirror the feed package
	defaultPageSize        = 30
	defaultBottomThreshold = 150
	defaultTopThreshold    = 60
	defaultLoadTimeout     = 15 * time.Second
	defaultEditWindow      = 15 * time.Minute

	defaultNotifyTimeout = 5 * time.Second
	defaultBlobMaxSize   = 10 * 1024 * 1024 // 10 MiB

	// sweep defaults
	defaultSweepCron   = "30 3 * * *" // daily at 03:30
	defaultSweepMinAge = time.Hour

	defaultRateRPS   = 50
	defaultRateBurst = 100
)

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	port := c.Server.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills in every unset value.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Sink == "" {
		c.Logging.Sink = "stdout"
	}

	f := &c.Feed
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.BottomThreshold <= 0 {
		f.BottomThreshold = defaultBottomThreshold
	}
	if f.TopThreshold <= 0 {
		f.TopThreshold = defaultTopThreshold
	}
	if f.LoadTimeout.Duration() <= 0 {
		f.LoadTimeout = Duration(defaultLoadTimeout)
	}
	if f.EditWindow.Duration() == 0 {
		f.EditWindow = Duration(defaultEditWindow)
	}

	if c.Notify.Timeout.Duration() <= 0 {
		c.Notify.Timeout = Duration(defaultNotifyTimeout)
	}
	if c.Blobs.MaxSize.Int64() <= 0 {
		c.Blobs.MaxSize = SizeBytes(defaultBlobMaxSize)
	}

	if c.Sweep.Cron == "" {
		c.Sweep.Cron = defaultSweepCron
	}
	if c.Sweep.MinAge.Duration() <= 0 {
		c.Sweep.MinAge = Duration(defaultSweepMinAge)
	}

	if c.Security.RateLimit.RPS <= 0 {
		c.Security.RateLimit.RPS = defaultRateRPS
	}
	if c.Security.RateLimit.Burst <= 0 {
		c.Security.RateLimit.Burst = defaultRateBurst
	}
}

// ValidateCron reports whether expr is a usable cron expression.
func ValidateCron(expr string) error {
	if !gronx.IsValid(expr) {
		return fmt.Errorf("invalid cron expression: %s", expr)
	}
	return nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("DMFEED_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
