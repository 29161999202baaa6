package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/shotdiff/internal/config"
	"github.com/nao1215/shotdiff/internal/model"
	"github.com/nao1215/shotdiff/internal/runner"
)

const (
	// readHeaderTimeout bounds how long a client may take to send headers.
	readHeaderTimeout = 10 * time.Second

	// shutdownTimeout bounds graceful shutdown once the context is done.
	shutdownTimeout = 30 * time.Second
)

// Service is the part of the runner the server drives.
type Service interface {
	Run(ctx context.Context, p runner.Params) (*model.RunReport, error)
	Trainer(ctx context.Context, p runner.TrainerParams) (*model.TrainerResult, error)
}

// Server serves the HTTP API.
type Server struct {
	service Service
	base    *config.Config
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server. base supplies the defaults that query parameters
// override; it is never modified.
func New(service Service, base *config.Config, opts ...Option) *Server {
	s := &Server{
		service: service,
		base:    base,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /trainer", s.handleTrainer)
	mux.HandleFunc("GET /run", s.handleRun)
	return s.logRequests(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, letting in-flight requests finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTrainer(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.service.Trainer(r.Context(), runner.TrainerParamsFromConfig(cfg))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	jsonResponse(w, s.logger, http.StatusOK, res)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}

	rep, err := s.service.Run(r.Context(), runner.ParamsFromConfig(cfg))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	jsonResponse(w, s.logger, http.StatusOK, rep)
}

// errorBody is the response of a request that could not start.
type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	jsonResponse(w, s.logger, status, errorBody{OK: false, Error: err.Error()})
}

// statusFor maps a runner error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, runner.ErrRunInProgress):
		return http.StatusConflict
	case runner.IsConfigError(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

// requestConfig copies the base configuration and applies the query
// parameters of r on top of it.
func (s *Server) requestConfig(r *http.Request) (*config.Config, error) {
	cfg := *s.base
	q := r.URL.Query()

	for name, dst := range map[string]*string{
		"urls_file":   &cfg.URLsFile,
		"out_dir":     &cfg.OutDir,
		"trainer_dir": &cfg.TrainerDir,
		"diff_dir":    &cfg.DiffDir,
		"reports_dir": &cfg.ReportsDir,
	} {
		if v := q.Get(name); v != "" {
			*dst = v
		}
	}

	if v := q.Get("timeout"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", v, err)
		}
		cfg.Timeout = time.Duration(n) * time.Second
	}
	if v := q.Get("wait"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid wait %q: %w", v, err)
		}
		cfg.Wait = time.Duration(f * float64(time.Second))
	}
	if v := q.Get("headful"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid headful %q: %w", v, err)
		}
		cfg.Headful = b
	}
	if v := q.Get("ssim_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ssim_threshold %q: %w", v, err)
		}
		cfg.SSIMThreshold = f
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", rec.status,
			"elapsed", time.Since(start).Round(time.Millisecond).String(),
		)
	})
}
