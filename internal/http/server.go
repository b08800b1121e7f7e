// Package http serves the bill ledger page, its form actions and a small
// JSON read API.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"billrecords/internal/core"
	"billrecords/internal/ledger"
	applog "billrecords/internal/log"
	"billrecords/internal/metrics"
	"billrecords/internal/middleware/ratelimit"
	"billrecords/internal/middleware/security"
	"billrecords/internal/middleware/trace"
	appweb "billrecords/web"
)

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

type Options struct {
	Logger  *applog.Logger
	Metrics *metrics.Recorder
	// Checks run by /readyz, keyed by the name reported in its body.
	Checks map[string]ReadyCheck
	// RateLimit applies to form posts; zero value uses ratelimit.DefaultConfig.
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	ledger    *ledger.Ledger
	templates *template.Template
	logger    *applog.Logger
	metrics   *metrics.Recorder
	checks    map[string]ReadyCheck
	limiter   *ratelimit.Limiter
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, l *ledger.Ledger, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Default(applog.ComponentHTTP)
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	rlConfig := opts.RateLimit
	if rlConfig.RequestsPerMinute == 0 {
		rlConfig = ratelimit.DefaultConfig()
	}

	s := &Server{
		ledger:    l,
		templates: t,
		logger:    logger,
		metrics:   opts.Metrics,
		checks:    opts.Checks,
		limiter:   ratelimit.NewLimiter(rlConfig),
		started:   time.Now(),
	}

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssets(3600)(http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /select", s.handleSelectUser)
	mux.HandleFunc("POST /amount", s.handleSetAmount)
	mux.HandleFunc("POST /bills", s.handleSaveBill)
	mux.HandleFunc("POST /bills/{id}/delete", s.handleDeleteBill)

	mux.HandleFunc("GET /api/bills", s.handleListBills)
	mux.HandleFunc("GET /api/totals", s.handleTotals)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	var h http.Handler = mux
	h = s.limiter.Middleware(security.ClientIP, s.onRateLimited)(h)
	h = s.observe(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = applog.Middleware(logger, trace.FromRequest)(h)
	h = trace.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimited(r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, security.ClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
}

// observe records request durations labelled by route pattern, so bill ids
// never become label values.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var templateFuncs = template.FuncMap{
	"amount": core.FormatAmount,
	"when": func(b core.Bill) string {
		t, err := b.CreatedAt()
		if err != nil {
			return b.Date
		}
		return t.Local().Format("2006-01-02 15:04")
	},
}
