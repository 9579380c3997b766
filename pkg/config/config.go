package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportFastHTTP = "fasthttp"
	TransportNetHTTP  = "nethttp"
)

const (
	defaultAddress         = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 20 * time.Second
	defaultMaxBodySize     = 4 * 1024 * 1024 // 4 MiB
	defaultReadBufferSize  = 16 * 1024
	defaultCrashDir        = "./crash"
	defaultMetricsPath     = "/metrics"
	defaultRateBurst       = 10
	// telemetry defaults
	defaultTelemetryDir           = "./telemetry"
	defaultTelemetrySlow          = 200 * time.Millisecond
	defaultTelemetryQueueCapacity = 2048
	defaultTelemetryBufferSize    = 64 * 1024
	defaultTelemetryFlush         = 2 * time.Second
	defaultTelemetryFileMaxSize   = 40 * 1024 * 1024 // 40MB
)

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = defaultAddress
	}
	port := c.Server.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// TLSEnabled reports whether the encrypted entry point is configured.
func (c *Config) TLSEnabled() bool {
	return c.Server.TLS.CertFile != "" && c.Server.TLS.KeyFile != ""
}

func (c *Config) PreserveHeaderCase() bool {
	return c.Server.PreserveHeaderCase == nil || *c.Server.PreserveHeaderCase
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s: %w", path, err)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	s := &c.Server
	if s.Address == "" {
		s.Address = defaultAddress
	}
	if s.Port == 0 {
		s.Port = defaultPort
	}
	if s.Transport == "" {
		s.Transport = TransportFastHTTP
	}
	if s.Workers <= 0 {
		s.Workers = 256 * runtime.NumCPU()
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = Duration(defaultReadTimeout)
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = Duration(defaultWriteTimeout)
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = Duration(defaultIdleTimeout)
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = Duration(defaultShutdownTimeout)
	}
	if s.MaxBodySize == 0 {
		s.MaxBodySize = defaultMaxBodySize
	}
	if s.ReadBufferSize == 0 {
		s.ReadBufferSize = defaultReadBufferSize
	}
	if s.CrashDir == "" {
		s.CrashDir = defaultCrashDir
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateBurst
	}

	t := &c.Telemetry
	if t.Dir == "" {
		t.Dir = defaultTelemetryDir
	}
	if t.SlowThreshold == 0 {
		t.SlowThreshold = Duration(defaultTelemetrySlow)
	}
	if t.QueueSize <= 0 {
		t.QueueSize = defaultTelemetryQueueCapacity
	}
	if t.BufferSize == 0 {
		t.BufferSize = defaultTelemetryBufferSize
	}
	if t.FlushInterval == 0 {
		t.FlushInterval = Duration(defaultTelemetryFlush)
	}
	if t.MaxFileSize == 0 {
		t.MaxFileSize = defaultTelemetryFileMaxSize
	}
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool, getenv func(string) string) string {
	if flagSet {
		return flagPath
	}
	if p := getenv("CONDUIT_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
