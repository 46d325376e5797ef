package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /var/lib/dmfeed
feed:
  page_size: 40
  load_timeout: 5s
  edit_window: 30
notify:
  enabled: true
  gateway_url: https://push.example.com/send
blobs:
  max_size: 2MB
sweep:
  enabled: true
  cron: "*/10 * * * *"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadConfigFileParsesHumanValues(t *testing.T) {
	cfg, err := LoadConfigFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, 40, cfg.Feed.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Feed.LoadTimeout.Duration())
	assert.Equal(t, 30*time.Second, cfg.Feed.EditWindow.Duration())
	assert.Equal(t, int64(2_000_000), cfg.Blobs.MaxSize.Int64())
}

func TestLoadConfigFileRejectsBadDuration(t *testing.T) {
	_, err := LoadConfigFile(writeConfig(t, "feed:\n  load_timeout: soon\n"))
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 30, cfg.Feed.PageSize)
	assert.Equal(t, float64(150), cfg.Feed.BottomThreshold)
	assert.Equal(t, float64(60), cfg.Feed.TopThreshold)
	assert.Equal(t, 15*time.Second, cfg.Feed.LoadTimeout.Duration())
	assert.Equal(t, 15*time.Minute, cfg.Feed.EditWindow.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, ValidateCron(cfg.Sweep.Cron))
}

func TestParseEnvs(t *testing.T) {
	env := map[string]string{
		"DMFEED_SERVER_ADDR":        "localhost:7000",
		"DMFEED_DB_PATH":            "/data",
		"DMFEED_FEED_PAGE_SIZE":     "25",
		"DMFEED_FEED_EDIT_WINDOW":   "1m",
		"DMFEED_BLOBS_MAX_SIZE":     "1MiB",
		"DMFEED_SWEEP_ENABLED":      "yes",
		"DMFEED_CORS_ORIGINS":       "https://a.example, https://b.example",
		"DMFEED_NOTIFY_GATEWAY_URL": "http://push.local",
	}
	cfg, res := parseEnvs(func(k string) string { return env[k] })
	assert.True(t, res.EnvUsed)
	assert.Empty(t, res.Invalid)
	assert.Equal(t, "localhost:7000", cfg.Addr())
	assert.Equal(t, "/data", cfg.Server.DBPath)
	assert.Equal(t, 25, cfg.Feed.PageSize)
	assert.Equal(t, time.Minute, cfg.Feed.EditWindow.Duration())
	assert.Equal(t, int64(1<<20), cfg.Blobs.MaxSize.Int64())
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORS.AllowedOrigins)
}

func TestParseEnvsReportsInvalid(t *testing.T) {
	env := map[string]string{"DMFEED_FEED_PAGE_SIZE": "many"}
	_, res := parseEnvs(func(k string) string { return env[k] })
	assert.Equal(t, []string{"DMFEED_FEED_PAGE_SIZE"}, res.Invalid)

	_, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, nil, false, nil, res)
	assert.Error(t, err)
}

func TestLoadEffectiveConfigSources(t *testing.T) {
	fileCfg, err := LoadConfigFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	envCfg := &Config{}
	envCfg.Server.DBPath = "/env/db"

	t.Run("config file wins when present", func(t *testing.T) {
		eff, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, fileCfg, true, envCfg, EnvResult{})
		require.NoError(t, err)
		assert.Equal(t, "config", eff.Source)
		assert.Equal(t, "127.0.0.1:9090", eff.Addr)
		assert.Equal(t, "/var/lib/dmfeed", eff.DBPath)
	})

	t.Run("flags override addr and db", func(t *testing.T) {
		flags := Flags{Addr: ":7777", DB: "/flag/db", Set: map[string]bool{"addr": true, "db": true}}
		eff, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{})
		require.NoError(t, err)
		assert.Equal(t, "flags", eff.Source)
		assert.Equal(t, "0.0.0.0:7777", eff.Addr)
		assert.Equal(t, "/flag/db", eff.DBPath)
		assert.Equal(t, 40, eff.Config.Feed.PageSize)
	})

	t.Run("env when no file", func(t *testing.T) {
		eff, err := LoadEffectiveConfig(Flags{DB: "./.dmfeed", Set: map[string]bool{}}, &Config{}, false, envCfg, EnvResult{})
		require.NoError(t, err)
		assert.Equal(t, "env", eff.Source)
		assert.Equal(t, "/env/db", eff.DBPath)
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		_, err := LoadEffectiveConfig(Flags{Config: "x.yaml", Set: map[string]bool{"config": true}}, nil, false, nil, EnvResult{})
		assert.Error(t, err)
	})
}

func TestParseConfigFlagSet(t *testing.T) {
	fs := flag.NewFlagSet("dmfeed", flag.ContinueOnError)
	flags, err := ParseConfigFlagSet(fs, []string{"--db", "/tmp/x", "--validate"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", flags.DB)
	assert.True(t, flags.Validate)
	assert.True(t, flags.Set["db"])
	assert.False(t, flags.Set["addr"])
}

func TestValidateConfig(t *testing.T) {
	good := &Config{}
	good.ApplyDefaults()
	good.Server.DBPath = "/db"
	require.NoError(t, ValidateConfig(EffectiveConfigResult{Config: good, DBPath: "/db"}))

	assert.Error(t, ValidateConfig(EffectiveConfigResult{Config: good}))

	badURL := *good
	badURL.Notify.GatewayURL = "ftp://nowhere"
	assert.Error(t, ValidateConfig(EffectiveConfigResult{Config: &badURL, DBPath: "/db"}))

	badCron := *good
	badCron.Sweep.Enabled = true
	badCron.Sweep.Cron = "every tuesday"
	assert.Error(t, ValidateConfig(EffectiveConfigResult{Config: &badCron, DBPath: "/db"}))

	halfTLS := *good
	halfTLS.Server.TLS.CertFile = "cert.pem"
	assert.Error(t, ValidateConfig(EffectiveConfigResult{Config: &halfTLS, DBPath: "/db"}))
}
