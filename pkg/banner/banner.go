package banner

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"conduithttp/pkg/config"
)

const banner = `
  ___ ___  _ __   __| |_   _ (_) |_
 / __/ _ \| '_ \ / _' | | | || | __|
| (_| (_) | | | | (_| | |_| || | |_
 \___\___/|_| |_|\__,_|\__,_||_|\__|
`

// Print writes the startup banner and an operator summary of eff to w.
func Print(w io.Writer, eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "defaults"
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "Listen:   %s\n", addr)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", src)

	cfg := eff.Config
	if cfg == nil {
		return
	}
	s := cfg.Server
	fmt.Fprintf(w, "Transport: %s (workers %s)\n", s.Transport, humanize.Comma(int64(s.Workers)))
	fmt.Fprintf(w, "Max body:  %s\n", humanize.IBytes(uint64(s.MaxBodySize.Int64())))
	fmt.Fprintf(w, "Timeouts:  read %s, write %s, idle %s\n",
		s.ReadTimeout.Duration(), s.WriteTimeout.Duration(), s.IdleTimeout.Duration())

	fmt.Fprintln(w, "\n== Production? =================================================")
	if cfg.TLSEnabled() {
		fmt.Fprintf(w, "- TLS: ENABLED (cert=%s)\n", s.TLS.CertFile)
	} else {
		fmt.Fprintln(w, "- TLS: disabled (set server.tls.cert_file and key_file)")
	}
	if cfg.RateLimit.RPS > 0 {
		fmt.Fprintf(w, "- Rate limit: %.2f rps, burst %d per client\n", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	} else {
		fmt.Fprintln(w, "- Rate limit: disabled")
	}
	if cfg.Metrics.Enabled {
		fmt.Fprintf(w, "- Metrics: %s\n", cfg.Metrics.Path)
	} else {
		fmt.Fprintln(w, "- Metrics: disabled")
	}
	if cfg.Telemetry.Enabled {
		fmt.Fprintf(w, "- Telemetry: requests slower than %s -> %s\n", cfg.Telemetry.SlowThreshold.Duration(), cfg.Telemetry.Dir)
	}
	fmt.Fprintln(w, "===============================================================")
}
