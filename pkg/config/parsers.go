package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
)

// Flags holds command-line flag values.
type Flags struct {
	Addr      string
	Config    string
	Transport string
	Set       map[string]bool
}

// EnvResult reports which CONDUIT_* variables were applied.
type EnvResult struct {
	EnvUsed bool
	Keys    []string
}

// EffectiveConfigResult bundles the merged config and where it came from.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	// Source lists the layers that contributed, e.g. "config+env+flags".
	Source string
}

// ParseConfigFlags parses command-line flags into set.
func ParseConfigFlags(set *flag.FlagSet, args []string) (Flags, error) {
	addrPtr := set.String("addr", ":8080", "HTTP server address")
	cfgPtr := set.String("config", "./config.yaml", "config file")
	transportPtr := set.String("transport", TransportFastHTTP, "server transport: fasthttp or nethttp")
	if err := set.Parse(args); err != nil {
		return Flags{}, err
	}

	setFlags := map[string]bool{}
	set.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	return Flags{
		Addr:      *addrPtr,
		Config:    *cfgPtr,
		Transport: *transportPtr,
		Set:       setFlags,
	}, nil
}

// ParseConfigFile loads the config file named by flags (or CONDUIT_CONFIG).
// A missing file is only an error when the path was given explicitly.
func ParseConfigFile(flags Flags, getenv func(string) string) (*Config, bool, error) {
	path := ResolveConfigPath(flags.Config, flags.Set["config"], getenv)
	explicit := flags.Set["config"] || getenv("CONDUIT_CONFIG") != ""
	cfg, err := LoadConfigFile(path)
	if err != nil {
		if !explicit && isNotFound(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs overlays CONDUIT_* environment variables onto a copy of base.
func ParseConfigEnvs(base *Config, getenv func(string) string) (*Config, EnvResult, error) {
	cfg := &Config{}
	if base != nil {
		*cfg = *base
	}
	var res EnvResult
	var errs []error

	get := func(key string) (string, bool) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return "", false
		}
		res.EnvUsed = true
		res.Keys = append(res.Keys, key)
		return v, true
	}
	fail := func(key, v string, err error) {
		errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
	}
	parseBool := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				fail(key, v, err)
				return
			}
			*dst = b
		}
	}
	parseInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			i, err := strconv.Atoi(v)
			if err != nil {
				fail(key, v, err)
				return
			}
			*dst = i
		}
	}
	parseDur := func(key string, dst *Duration) {
		if v, ok := get(key); ok {
			d, err := parseDuration(v)
			if err != nil {
				fail(key, v, err)
				return
			}
			*dst = d
		}
	}
	parseSize := func(key string, dst *SizeBytes) {
		if v, ok := get(key); ok {
			s, err := parseSizeBytes(v)
			if err != nil {
				fail(key, v, err)
				return
			}
			*dst = s
		}
	}
	parseStr := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	// server
	if v, ok := get("CONDUIT_SERVER_ADDR"); ok {
		host, port, err := splitAddr(v)
		if err != nil {
			fail("CONDUIT_SERVER_ADDR", v, err)
		} else {
			cfg.Server.Address = host
			cfg.Server.Port = port
		}
	}
	parseStr("CONDUIT_SERVER_ADDRESS", &cfg.Server.Address)
	parseInt("CONDUIT_SERVER_PORT", &cfg.Server.Port)
	parseStr("CONDUIT_TRANSPORT", &cfg.Server.Transport)
	parseInt("CONDUIT_WORKERS", &cfg.Server.Workers)
	parseBool("CONDUIT_REUSE_PORT", &cfg.Server.ReusePort)
	parseStr("CONDUIT_TLS_CERT", &cfg.Server.TLS.CertFile)
	parseStr("CONDUIT_TLS_KEY", &cfg.Server.TLS.KeyFile)
	parseDur("CONDUIT_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	parseDur("CONDUIT_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	parseDur("CONDUIT_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	parseDur("CONDUIT_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	parseSize("CONDUIT_MAX_BODY_SIZE", &cfg.Server.MaxBodySize)
	parseSize("CONDUIT_READ_BUFFER_SIZE", &cfg.Server.ReadBufferSize)
	if v, ok := get("CONDUIT_PRESERVE_HEADER_CASE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail("CONDUIT_PRESERVE_HEADER_CASE", v, err)
		} else {
			cfg.Server.PreserveHeaderCase = &b
		}
	}
	parseStr("CONDUIT_CRASH_DIR", &cfg.Server.CrashDir)

	// logging
	parseStr("CONDUIT_LOG_LEVEL", &cfg.Logging.Level)

	// metrics
	parseBool("CONDUIT_METRICS_ENABLED", &cfg.Metrics.Enabled)
	parseStr("CONDUIT_METRICS_PATH", &cfg.Metrics.Path)

	// rate limiting
	if v, ok := get("CONDUIT_RATE_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fail("CONDUIT_RATE_RPS", v, err)
		} else {
			cfg.RateLimit.RPS = f
		}
	}
	parseInt("CONDUIT_RATE_BURST", &cfg.RateLimit.Burst)

	// telemetry
	parseBool("CONDUIT_TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	parseStr("CONDUIT_TELEMETRY_DIR", &cfg.Telemetry.Dir)
	parseDur("CONDUIT_TELEMETRY_SLOW_THRESHOLD", &cfg.Telemetry.SlowThreshold)
	parseInt("CONDUIT_TELEMETRY_QUEUE_SIZE", &cfg.Telemetry.QueueSize)
	parseSize("CONDUIT_TELEMETRY_BUFFER_SIZE", &cfg.Telemetry.BufferSize)
	parseDur("CONDUIT_TELEMETRY_FLUSH_INTERVAL", &cfg.Telemetry.FlushInterval)
	parseSize("CONDUIT_TELEMETRY_MAX_FILE_SIZE", &cfg.Telemetry.MaxFileSize)
	parseStr("CONDUIT_TELEMETRY_ROTATE_CRON", &cfg.Telemetry.RotateCron)

	return cfg, res, errors.Join(errs...)
}

// LoadEffectiveConfig merges the layers in increasing precedence:
// defaults, config file, environment, explicit flags.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, getenv func(string) string) (EffectiveConfigResult, error) {
	var sources []string
	if fileExists {
		sources = append(sources, "config")
	}

	cfg, envRes, err := ParseConfigEnvs(fileCfg, getenv)
	if err != nil {
		return EffectiveConfigResult{}, err
	}
	if envRes.EnvUsed {
		sources = append(sources, "env")
	}

	flagged := false
	if flags.Set["addr"] {
		host, port, err := splitAddr(flags.Addr)
		if err != nil {
			return EffectiveConfigResult{}, fmt.Errorf("invalid -addr %q: %w", flags.Addr, err)
		}
		if host != "" {
			cfg.Server.Address = host
		}
		cfg.Server.Port = port
		flagged = true
	}
	if flags.Set["transport"] {
		cfg.Server.Transport = flags.Transport
		flagged = true
	}
	if flagged {
		sources = append(sources, "flags")
	}
	if len(sources) == 0 {
		sources = append(sources, "defaults")
	}

	cfg.ApplyDefaults()
	return EffectiveConfigResult{
		Config: cfg,
		Addr:   cfg.Addr(),
		Source: strings.Join(sources, "+"),
	}, nil
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
