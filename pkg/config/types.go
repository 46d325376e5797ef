package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	Store    StoreConfig    `yaml:"store"`
	Feed     FeedConfig     `yaml:"feed"`
	Notify   NotifyConfig   `yaml:"notify"`
	Blobs    BlobsConfig    `yaml:"blobs"`
	Sweep    SweepConfig    `yaml:"sweep"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	DBPath  string    `yaml:"db_path"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds request filtering settings. There is no
// authentication: the caller identity is taken from the X-User-ID header.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Sink is "stdout" or "file:<path>".
	Sink string `yaml:"sink"`
}

// StoreConfig tunes the document store.
type StoreConfig struct {
	DisablePebbleWAL bool `yaml:"disable_pebble_wal"`
}

// FeedConfig tunes the windowed message feed.
type FeedConfig struct {
	PageSize        int      `yaml:"page_size"`
	BottomThreshold float64  `yaml:"bottom_threshold"`
	TopThreshold    float64  `yaml:"top_threshold"`
	LoadTimeout     Duration `yaml:"load_timeout"`
	EditWindow      Duration `yaml:"edit_window"`
}

// NotifyConfig controls the notify-on-new-message trigger. With no
// gateway_url notifications are only logged.
type NotifyConfig struct {
	Enabled    bool     `yaml:"enabled"`
	GatewayURL string   `yaml:"gateway_url"`
	Timeout    Duration `yaml:"timeout"`
}

// BlobsConfig controls image uploads.
type BlobsConfig struct {
	MaxSize SizeBytes `yaml:"max_size"`
}

// SweepConfig controls the orphaned-blob sweeper.
type SweepConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// MinAge protects fresh uploads that no message references yet.
	MinAge Duration `yaml:"min_age"`
	DryRun bool     `yaml:"dry_run"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	v, err := parseSize(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

func parseSize(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	return 0, fmt.Errorf("invalid size value: %q", raw)
}

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func parseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration value: %q", raw)
}
