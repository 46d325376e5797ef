package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DMFEED_"

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr     string
	DB       string
	Config   string
	Set      map[string]bool
	Validate bool
}

// holds the results of applying environment overrides
type EnvResult struct {
	EnvUsed bool
	// Invalid lists variables that were set but could not be parsed.
	Invalid []string
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// parses command-line flags and returns them as a Flags struct
func ParseConfigFlags() Flags {
	f, _ := ParseConfigFlagSet(flag.CommandLine, os.Args[1:])
	return f
}

// ParseConfigFlagSet registers the server flags on fs and parses args.
func ParseConfigFlagSet(fs *flag.FlagSet, args []string) (Flags, error) {
	addrPtr := fs.String("addr", ":8080", "HTTP listen address")
	dbPtr := fs.String("db", "./.dmfeed", "Pebble DB path")
	cfgPtr := fs.String("config", "./config.yaml", "Path to config file")
	validatePtr := fs.Bool("validate", false, "Validate the configuration and exit")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// record which flags were set explicitly
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags, Validate: *validatePtr}, nil
}

// loads config from file, returns config, found bool, and error
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// loads environment variables into a new Config and returns it with EnvResult; caller config is unchanged
func ParseConfigEnvs() (*Config, EnvResult) {
	return parseEnvs(os.Getenv)
}

func parseEnvs(getenv func(string) string) (*Config, EnvResult) {
	names := []string{
		"SERVER_ADDR", "SERVER_ADDRESS", "SERVER_PORT", "DB_PATH",
		"TLS_CERT", "TLS_KEY",
		"CORS_ORIGINS", "RATE_RPS", "RATE_BURST", "IP_WHITELIST",
		"LOG_LEVEL", "LOG_SINK",
		"DISABLE_PEBBLE_WAL",
		"FEED_PAGE_SIZE", "FEED_BOTTOM_THRESHOLD", "FEED_TOP_THRESHOLD", "FEED_LOAD_TIMEOUT", "FEED_EDIT_WINDOW",
		"NOTIFY_ENABLED", "NOTIFY_GATEWAY_URL", "NOTIFY_TIMEOUT",
		"BLOBS_MAX_SIZE",
		"SWEEP_ENABLED", "SWEEP_CRON", "SWEEP_MIN_AGE", "SWEEP_DRY_RUN",
	}
	envs := make(map[string]string, len(names))
	envUsed := false
	for _, n := range names {
		v := strings.TrimSpace(getenv(EnvPrefix + n))
		envs[n] = v
		if v != "" {
			envUsed = true
		}
	}
	envCfg := &Config{}
	var invalid []string
	bad := func(name string) { invalid = append(invalid, EnvPrefix+name) }

	// parse helpers
	parseList := func(v string) []string {
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}
	parseBool := func(v string) bool {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			return true
		default:
			return false
		}
	}
	setInt := func(name string, dst *int) {
		if v := envs[name]; v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			} else {
				bad(name)
			}
		}
	}
	setFloat := func(name string, dst *float64) {
		if v := envs[name]; v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			} else {
				bad(name)
			}
		}
	}
	setDuration := func(name string, dst *Duration) {
		if v := envs[name]; v != "" {
			if d, err := parseDuration(v); err == nil {
				*dst = d
			} else {
				bad(name)
			}
		}
	}

	// SERVER_ADDR wins over the split address variables
	if v := envs["SERVER_ADDR"]; v != "" {
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			}
		} else {
			envCfg.Server.Address = v
		}
	} else {
		if host := envs["SERVER_ADDRESS"]; host != "" {
			envCfg.Server.Address = host
		}
		setInt("SERVER_PORT", &envCfg.Server.Port)
	}
	envCfg.Server.DBPath = envs["DB_PATH"]
	envCfg.Server.TLS.CertFile = envs["TLS_CERT"]
	envCfg.Server.TLS.KeyFile = envs["TLS_KEY"]

	if v := envs["CORS_ORIGINS"]; v != "" {
		envCfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	setFloat("RATE_RPS", &envCfg.Security.RateLimit.RPS)
	setInt("RATE_BURST", &envCfg.Security.RateLimit.Burst)
	if v := envs["IP_WHITELIST"]; v != "" {
		envCfg.Security.IPWhitelist = parseList(v)
	}

	envCfg.Logging.Level = envs["LOG_LEVEL"]
	envCfg.Logging.Sink = envs["LOG_SINK"]
	envCfg.Store.DisablePebbleWAL = parseBool(envs["DISABLE_PEBBLE_WAL"])

	setInt("FEED_PAGE_SIZE", &envCfg.Feed.PageSize)
	setFloat("FEED_BOTTOM_THRESHOLD", &envCfg.Feed.BottomThreshold)
	setFloat("FEED_TOP_THRESHOLD", &envCfg.Feed.TopThreshold)
	setDuration("FEED_LOAD_TIMEOUT", &envCfg.Feed.LoadTimeout)
	setDuration("FEED_EDIT_WINDOW", &envCfg.Feed.EditWindow)

	envCfg.Notify.Enabled = parseBool(envs["NOTIFY_ENABLED"])
	envCfg.Notify.GatewayURL = envs["NOTIFY_GATEWAY_URL"]
	setDuration("NOTIFY_TIMEOUT", &envCfg.Notify.Timeout)

	if v := envs["BLOBS_MAX_SIZE"]; v != "" {
		if s, err := parseSize(v); err == nil {
			envCfg.Blobs.MaxSize = s
		} else {
			bad("BLOBS_MAX_SIZE")
		}
	}

	envCfg.Sweep.Enabled = parseBool(envs["SWEEP_ENABLED"])
	envCfg.Sweep.Cron = envs["SWEEP_CRON"]
	setDuration("SWEEP_MIN_AGE", &envCfg.Sweep.MinAge)
	envCfg.Sweep.DryRun = parseBool(envs["SWEEP_DRY_RUN"])

	return envCfg, EnvResult{EnvUsed: envUsed, Invalid: invalid}
}

// decides which single source to use (flags, config file, or env) and returns the effective config plus resolved addr and dbPath. if --config is set, only the config file is used; otherwise flags if set; else config file if present; else env
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envRes EnvResult) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult
	if len(envRes.Invalid) > 0 {
		return res, fmt.Errorf("invalid environment values: %s", strings.Join(envRes.Invalid, ", "))
	}
	if fileCfg == nil {
		fileCfg = &Config{}
	}
	if envCfg == nil {
		envCfg = &Config{}
	}

	switch {
	case flags.Set["config"]:
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.Source = "config"
	case flags.Set["addr"] || flags.Set["db"]:
		addr := flags.Addr
		if !flags.Set["addr"] {
			addr = envCfg.Addr()
			if envCfg.Server.Address == "" && envCfg.Server.Port == 0 {
				addr = fileCfg.Addr()
			}
		}
		dbPath := flags.DB
		if !flags.Set["db"] {
			if p := strings.TrimSpace(envCfg.Server.DBPath); p != "" {
				dbPath = p
			} else if p := strings.TrimSpace(fileCfg.Server.DBPath); p != "" {
				dbPath = p
			}
		}
		// flags only carry addr and db; everything else comes from the file
		out := *fileCfg
		out.Server.Address, out.Server.Port = splitAddr(addr)
		out.Server.DBPath = dbPath
		res.Config = &out
		res.Source = "flags"
	case fileExists:
		res.Config = fileCfg
		res.Source = "config"
	default:
		res.Config = envCfg
		res.Source = "env"
	}

	if res.Config.Server.DBPath == "" {
		res.Config.Server.DBPath = flags.DB
	}
	res.Config.ApplyDefaults()
	res.Addr = res.Config.Addr()
	res.DBPath = res.Config.Server.DBPath
	return res, nil
}

// splits host:port; a bare ":port" yields an empty host
func splitAddr(a string) (string, int) {
	if a == "" {
		return "", 0
	}
	h, p, err := net.SplitHostPort(a)
	if err != nil {
		return a, 0
	}
	pi, err := strconv.Atoi(p)
	if err != nil {
		return h, 0
	}
	return h, pi
}
