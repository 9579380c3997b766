package app

import (
	"fmt"
	"net"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/valyala/fasthttp"

	"conduithttp/pkg/httpx"
	"conduithttp/pkg/logger"
)

const healthzPath = "/healthz"

type healthStatus struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Transport string `json:"transport"`
	Scheme    string `json:"scheme"`
}

func (a *App) health() []byte {
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	b, _ := json.Marshal(healthStatus{
		Status:    "ok",
		Version:   ver,
		Transport: a.eff.Config.Server.Transport,
		Scheme:    a.conn.Scheme.String(),
	})
	return b
}

// fastLogger routes fasthttp's internal messages into slog.
type fastLogger struct{}

func (fastLogger) Printf(format string, args ...any) {
	logger.Warn("fasthttp", "msg", fmt.Sprintf(format, args...))
}

func (a *App) newFastHTTPServer() *fasthttp.Server {
	s := a.eff.Config.Server
	return &fasthttp.Server{
		Handler:                       a.fastHandler(),
		Name:                          "conduit",
		Concurrency:                   s.Workers,
		ReadTimeout:                   s.ReadTimeout.Duration(),
		WriteTimeout:                  s.WriteTimeout.Duration(),
		IdleTimeout:                   s.IdleTimeout.Duration(),
		MaxRequestBodySize:            int(s.MaxBodySize.Int64()),
		ReadBufferSize:                int(s.ReadBufferSize.Int64()),
		DisableHeaderNamesNormalizing: a.eff.Config.PreserveHeaderCase(),
		StreamRequestBody:             true,
		NoDefaultContentType:          true,
		Logger:                        fastLogger{},
	}
}

// fastHandler serves health and metrics directly and passes everything else
// through the rate limiter into the adapter.
func (a *App) fastHandler() fasthttp.RequestHandler {
	adapter := httpx.FastHTTPAdapter(a.conn)
	var metricsPath string
	var metricsHandler fasthttp.RequestHandler
	if a.metrics != nil {
		metricsPath = a.eff.Config.Metrics.Path
		metricsHandler = a.metrics.FastHTTPHandler()
	}
	health := a.health()

	return func(ctx *fasthttp.RequestCtx) {
		switch path := string(ctx.Path()); {
		case path == healthzPath:
			ctx.SetContentType("application/json")
			ctx.SetStatusCode(fasthttp.StatusOK)
			_, _ = ctx.Write(health)
			return
		case metricsHandler != nil && path == metricsPath:
			metricsHandler(ctx)
			return
		}
		if !a.limiter.Allow(ctx.RemoteIP().String()) {
			a.metrics.RateLimited()
			ctx.Error("rate limit exceeded\n", fasthttp.StatusTooManyRequests)
			ctx.Response.Header.Set("Retry-After", "1")
			return
		}
		adapter(ctx)
	}
}

func (a *App) newHTTPServer() *http.Server {
	s := a.eff.Config.Server
	return &http.Server{
		Handler:        a.httpHandler(),
		ReadTimeout:    s.ReadTimeout.Duration(),
		WriteTimeout:   s.WriteTimeout.Duration(),
		IdleTimeout:    s.IdleTimeout.Duration(),
		MaxHeaderBytes: int(s.ReadBufferSize.Int64()),
	}
}

// httpHandler is the net/http equivalent of fastHandler.
func (a *App) httpHandler() http.Handler {
	r := mux.NewRouter()
	// the adapter sees raw paths
	r.SkipClean(true)

	health := a.health()
	r.HandleFunc(healthzPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(health)
	})
	if a.metrics != nil {
		r.Handle(a.eff.Config.Metrics.Path, a.metrics.Handler()).Methods(http.MethodGet)
	}

	var adapter http.Handler = httpx.NetHTTPAdapter(a.conn)
	if n := a.eff.Config.Server.MaxBodySize.Int64(); n > 0 {
		adapter = limitBody(adapter, n)
	}
	r.PathPrefix("/").Handler(a.limitHTTP(adapter))
	return r
}

func (a *App) limitHTTP(next http.Handler) http.Handler {
	if a.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !a.limiter.Allow(host) {
			a.metrics.RateLimited()
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler, limit int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > limit {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}
