// Package http exposes the calculator, export and privacy services as a
// JSON API under /api/v1.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/cache"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/config"
	applog "github.com/17chuhai-dev/zinses-rechner-optimization/internal/log"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/middleware/ratelimit"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/middleware/security"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/middleware/trace"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/monitor"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/services"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/storage"
)

// SheetsExporter appends one calculation to an external spreadsheet.
// Satisfied by *export.SheetsTarget; nil means the export is not configured.
type SheetsExporter interface {
	Append(ctx context.Context, req calculator.Request, res calculator.Result, now time.Time) (string, error)
}

// Deps carries everything the server needs. Sheets may be nil; a nil Logger
// gets the default configuration.
type Deps struct {
	Config  *config.Config
	Calc    *services.CalculationService
	Privacy *services.PrivacyService
	Sheets  SheetsExporter
	Storage *storage.SQLiteRepository
	Metrics *monitor.Metrics
	Logger  *applog.Logger
}

type Server struct {
	http.Server

	cfg     *config.Config
	calc    *services.CalculationService
	privacy *services.PrivacyService
	sheets  SheetsExporter
	storage *storage.SQLiteRepository
	metrics *monitor.Metrics

	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *applog.Logger
	slogger  *applog.StructuredLogger

	// Small cache for the limits endpoint, the payload only changes on
	// restart but clients poll it.
	limitsCache  *cache.LRUCache[limitsResponse]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and the middleware chain, returning a
// ready-to-run server listening on cfg.Port.
func NewServer(deps Deps) *Server {
	mux := http.NewServeMux()

	logger := deps.Logger
	if logger == nil {
		cfg := applog.DefaultConfig()
		cfg.Component = applog.ComponentHTTP
		logger = applog.New(cfg)
	}

	s := &Server{
		cfg:     deps.Config,
		calc:    deps.Calc,
		privacy: deps.Privacy,
		sheets:  deps.Sheets,
		storage: deps.Storage,
		metrics: deps.Metrics,

		logger:   logger,
		slogger:  applog.NewStructuredLogger(logger),
		detector: security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.Config.RateLimitPerMinute,
		}),
		limitsCache:  cache.NewLRUCache[limitsResponse](1, time.Hour),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.limitsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("POST /api/v1/calculator/compound-interest", s.handleCalculate)
	mux.HandleFunc("GET /api/v1/calculator/limits", s.handleLimits)

	mux.HandleFunc("POST /api/v1/export/csv", s.handleExportCSV)
	mux.HandleFunc("POST /api/v1/export/excel", s.handleExportExcel)
	mux.HandleFunc("POST /api/v1/export/pdf", s.handleExportPDF)
	mux.HandleFunc("POST /api/v1/export/preview", s.handleExportPreview)
	mux.HandleFunc("GET /api/v1/export/formats", s.handleExportFormats)
	mux.HandleFunc("POST /api/v1/export/sheets", s.handleExportSheets)

	mux.HandleFunc("POST /api/v1/privacy/cookie-consent", s.handleCookieConsent)
	mux.HandleFunc("POST /api/v1/privacy/delete-user-data", s.handleDeleteUserData)
	mux.HandleFunc("GET /api/v1/privacy/export-user-data", s.handleExportUserData)
	mux.HandleFunc("GET /api/v1/privacy/compliance-status", s.handleComplianceStatus)

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/health/detailed", s.handleHealthDetailed)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	s.Server = http.Server{
		Addr:              ":" + deps.Config.Port,
		Handler:           s.buildMiddlewareChain(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// buildMiddlewareChain wraps the mux: trace (outermost) -> ratelimit ->
// security headers/CORS -> suspicious request screening.
func (s *Server) buildMiddlewareChain(mux http.Handler) http.Handler {
	handler := s.screenSuspicious(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig(), s.cfg.AllowedOrigins)
	handler = headers.Middleware(handler)

	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(handler)

	handler = applog.Middleware(s.logger)(handler)

	traceMW := trace.NewMiddleware(s.detector.ExtractClientIP, s.metrics)
	return traceMW.Middleware(handler)
}

// screenSuspicious rejects requests matching known attack patterns before
// they reach a handler.
func (s *Server) screenSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request blocked",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r),
				"user_agent", r.Header.Get("User-Agent"))
			apiError(w, http.StatusBadRequest, "Ungültige Anfrage")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	slog.WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.detector.ExtractClientIP(r),
		"path", r.URL.Path)
	w.Header().Set("Retry-After", "60")
	apiError(w, http.StatusTooManyRequests, "Zu viele Anfragen. Bitte versuchen Sie es später erneut.")
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
