package config

import (
	"fmt"
	"net/url"
	"os"
)

// set defaults, fail fast on critical errors
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, DMFEED_DB_PATH env, or server.db_path in config")
	}

	// TLS cert/key presence check if one is set
	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if cfg.Feed.PageSize > 500 {
		return fmt.Errorf("feed.page_size %d exceeds 500", cfg.Feed.PageSize)
	}

	if u := cfg.Notify.GatewayURL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("invalid notify.gateway_url: %q", u)
		}
	}

	if cfg.Sweep.Enabled {
		if err := ValidateCron(cfg.Sweep.Cron); err != nil {
			return fmt.Errorf("sweep.cron: %w", err)
		}
	}
	return nil
}
