// Package server exposes scans and language analysis over HTTP. Requests and
// responses are JSON; every route is a POST.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/language"
	"github.com/redactyl/piiscan/internal/remote"
)

// Config wires the server to its collaborators. Zero values are usable except
// GitHub, which New fills with an unauthenticated client when nil.
type Config struct {
	Addr    string
	GitHub  *remote.Client
	Budget  int           // API calls per /scan-github request
	Timeout time.Duration // per request, 0 = none
	Workers int
	Table   language.Table
	// DefaultExcludes skips vendor and build directories in directory scans.
	DefaultExcludes bool
	Logger          *slog.Logger
}

type Server struct {
	cfg      Config
	log      *slog.Logger
	mux      *http.ServeMux
	requests metric.Int64Counter
}

func New(cfg Config) (*Server, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.GitHub == nil {
		c, err := remote.NewClient(context.Background(), remote.Options{Logger: log})
		if err != nil {
			return nil, err
		}
		cfg.GitHub = c
	}
	if cfg.Table.Languages() == nil {
		cfg.Table = language.DefaultTable()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	requests, _ := otel.Meter("github.com/redactyl/piiscan/internal/server").Int64Counter("piiscan_http_requests_total")
	s := &Server{cfg: cfg, log: log, mux: http.NewServeMux(), requests: requests}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /scan-github", s.handleScanGitHub)
	s.mux.HandleFunc("POST /scan-directory", s.handleScanDirectory)
	s.mux.HandleFunc("POST /analyze-github-repo", s.handleAnalyzeGitHub)
	s.mux.HandleFunc("POST /analyze-local-directory", s.handleAnalyzeLocal)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		s.requests.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("route", r.URL.Path),
			attribute.Int("status", rec.status),
		))
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("server started", "addr", s.cfg.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutdown initiated")
	sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sdCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Remaining *int   `json:"remaining,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	var rl *errs.RateLimitError
	if errors.As(err, &rl) {
		if d := rl.RetryHint(time.Now()); d > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
	}
	if status >= 500 {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.log.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	body := errorBody{Error: errs.Public(err), Code: errs.Code(err)}
	if errors.Is(err, errs.ErrRateLimited) {
		body.Remaining = new(int)
	}
	writeJSON(w, status, body)
}
