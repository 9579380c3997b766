package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/adhocore/gronx"
)

// ValidateConfig fails fast on settings the server cannot start with.
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}

	switch cfg.Server.Transport {
	case TransportFastHTTP, TransportNetHTTP:
	default:
		return fmt.Errorf("unknown server.transport %q: want %s or %s", cfg.Server.Transport, TransportFastHTTP, TransportNetHTTP)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Server.Workers < 0 {
		return fmt.Errorf("server.workers must not be negative")
	}
	if cfg.Server.MaxBodySize < 0 {
		return fmt.Errorf("server.max_body_size must not be negative")
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

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/': %q", cfg.Metrics.Path)
	}

	if cfg.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must not be negative")
	}
	if cfg.RateLimit.RPS > 0 && cfg.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be at least 1 when rate limiting is enabled")
	}

	tel := cfg.Telemetry
	if tel.Enabled && tel.RotateCron != "" {
		gron := gronx.New()
		if !gron.IsValid(tel.RotateCron) {
			return fmt.Errorf("invalid telemetry.rotate_cron: not a valid cron expression")
		}
	}

	return nil
}
