package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"conduithttp/pkg/conduit"
	"conduithttp/pkg/config"
	"conduithttp/pkg/httpx"
	"conduithttp/pkg/limiter"
	"conduithttp/pkg/logger"
	"conduithttp/pkg/metrics"
	"conduithttp/pkg/telemetry"
)

const (
	limiterSweepEvery = time.Minute
	limiterIdle       = 5 * time.Minute
)

// App groups server state and components.
type App struct {
	eff     config.EffectiveConfigResult
	version string

	conn    *httpx.ConnHandler
	metrics *metrics.Metrics
	tel     *telemetry.Telemetry
	limiter *limiter.Pool

	mu      sync.Mutex
	ln      net.Listener
	srv     *http.Server
	srvFast *fasthttp.Server
	ready   chan struct{}
}

// New builds the request pipeline for eff around h. A nil h serves the demo
// handler. Nothing listens until Run.
func New(eff config.EffectiveConfigResult, version string, h conduit.Handler) (*App, error) {
	if eff.Config == nil {
		return nil, fmt.Errorf("effective config is nil")
	}
	cfg := eff.Config
	if h == nil {
		h = WithRequestID(LogRequests(DemoHandler()))
	}

	a := &App{eff: eff, version: version, ready: make(chan struct{})}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(prometheus.NewRegistry())
	}

	if cfg.Telemetry.Enabled {
		tel, err := telemetry.New(telemetry.Options{
			Dir:           cfg.Telemetry.Dir,
			BufferSize:    int(cfg.Telemetry.BufferSize.Int64()),
			QueueSize:     cfg.Telemetry.QueueSize,
			FlushInterval: cfg.Telemetry.FlushInterval.Duration(),
			MaxFileSize:   cfg.Telemetry.MaxFileSize.Int64(),
			SlowThreshold: cfg.Telemetry.SlowThreshold.Duration(),
			RotateCron:    cfg.Telemetry.RotateCron,
		})
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		a.tel = tel
	}

	if cfg.RateLimit.RPS > 0 {
		a.limiter = limiter.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	scheme := conduit.SchemeHTTP
	if cfg.TLSEnabled() {
		scheme = conduit.SchemeHTTPS
	}
	a.conn = &httpx.ConnHandler{
		Handler:   h,
		Scheme:    scheme,
		Log:       logger.Log,
		Metrics:   a.metrics,
		Telemetry: a.tel,
	}
	return a, nil
}

// Addr returns the bound listener address once Run has started listening.
func (a *App) Addr() net.Addr {
	<-a.ready
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// Run listens, serves, and blocks until ctx is cancelled or the server fails.
// Call Shutdown afterwards to drain connections.
func (a *App) Run(ctx context.Context) error {
	cfg := a.eff.Config
	ln, err := listen(ctx, a.eff.Addr, cfg.Server.ReusePort)
	if err != nil {
		close(a.ready)
		return fmt.Errorf("listen %s: %w", a.eff.Addr, err)
	}
	a.mu.Lock()
	a.ln = ln
	a.mu.Unlock()
	close(a.ready)

	if a.limiter != nil {
		go a.sweepLimiter(ctx)
	}

	logger.Info("server_listening",
		"addr", ln.Addr().String(),
		"transport", cfg.Server.Transport,
		"scheme", a.conn.Scheme.String(),
	)
	errCh := a.serve(ln)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) serve(ln net.Listener) <-chan error {
	cfg := a.eff.Config
	tls := cfg.Server.TLS
	errCh := make(chan error, 1)

	switch cfg.Server.Transport {
	case config.TransportNetHTTP:
		srv := a.newHTTPServer()
		a.mu.Lock()
		a.srv = srv
		a.mu.Unlock()
		go func() {
			var err error
			if cfg.TLSEnabled() {
				err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			} else {
				err = srv.Serve(ln)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	default:
		srv := a.newFastHTTPServer()
		a.mu.Lock()
		a.srvFast = srv
		a.mu.Unlock()
		go func() {
			var err error
			if cfg.TLSEnabled() {
				err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			} else {
				err = srv.Serve(ln)
			}
			if err != nil {
				errCh <- err
			}
		}()
	}
	return errCh
}

func (a *App) sweepLimiter(ctx context.Context) {
	t := time.NewTicker(limiterSweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(limiterIdle); n > 0 {
				logger.Debug("limiter_swept", "removed", n)
			}
		}
	}
}

// Shutdown drains in-flight requests and flushes telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	srv, srvFast := a.srv, a.srvFast
	a.mu.Unlock()

	var err error
	if srvFast != nil {
		err = srvFast.ShutdownWithContext(ctx)
	}
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	if a.tel != nil {
		a.tel.Close()
	}
	if err != nil {
		logger.Error("shutdown_failed", "error", err)
		return err
	}
	logger.Info("shutdown_complete")
	return nil
}
