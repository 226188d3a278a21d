// Package server exports the scenario over HTTP and lets a client trigger
// a pass of the configured manifest.
//
// Reads and passes share one lock around the Store; at most one pass runs
// at a time and a second trigger gets 409 Conflict.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/abeflag/internal/engine"
	"github.com/roach88/abeflag/internal/integrity"
	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/manifest"
	"github.com/roach88/abeflag/internal/runner"
	"github.com/roach88/abeflag/internal/scenario"
	"github.com/roach88/abeflag/internal/store"
)

// History lists finished passes. The SQLite store and the Redis repository
// implement it.
type History interface {
	ListPasses(ctx context.Context) ([]ir.PassRecord, error)
}

// PassReader reads a single pass and its transitions. Only the SQLite
// store keeps events.
type PassReader interface {
	ReadPass(ctx context.Context, passID string) (ir.PassRecord, error)
	ReadPassEvents(ctx context.Context, passID string) ([]ir.PassEvent, error)
}

// Config wires a Server.
type Config struct {
	Store    *scenario.Store
	Engine   *engine.Engine
	Manifest *manifest.Manifest

	// History backs GET /passes. Nil means the backend keeps none.
	History History

	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// Server serves one scenario.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	mu      sync.Mutex
	running atomic.Bool
}

// New creates a Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/scenario", s.getScenario)
	r.Get("/status", s.getStatus)
	r.Get("/receipt", s.getReceipt)
	r.Get("/verify", s.getVerify)
	r.Get("/passes", s.listPasses)
	r.Get("/passes/{passID}", s.getPass)
	r.Post("/passes", s.runPass)
	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down,
// letting a running pass finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving scenario", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// snapshot copies the scenario under the lock.
func (s *Server) snapshot(ctx context.Context) *ir.Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Store.Snapshot(ctx)
}

func (s *Server) getScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot(r.Context()))
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot(r.Context()).ModuleStatus)
}

type receiptResponse struct {
	Hash        string `json:"hash"`
	Certificate any    `json:"certificate"`
}

func (s *Server) getReceipt(w http.ResponseWriter, r *http.Request) {
	sc := s.snapshot(r.Context())
	cert, ok := sc.Lookup(ir.ReceiptPath)
	if !ok || cert == nil {
		writeError(w, http.StatusNotFound, "no audit certificate yet")
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Hash: sc.Hashes[ir.ReceiptPath], Certificate: cert})
}

func (s *Server) getVerify(w http.ResponseWriter, r *http.Request) {
	report := integrity.Verify(s.snapshot(r.Context()), s.cfg.Store.Hasher())
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) listPasses(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeError(w, http.StatusNotImplemented, "pass history is not kept by this backend")
		return
	}
	passes, err := s.cfg.History.ListPasses(r.Context())
	if err != nil {
		s.logger.Error("list passes", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, passes)
}

type passDetail struct {
	ir.PassRecord
	Events []ir.PassEvent `json:"events"`
}

func (s *Server) getPass(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.cfg.History.(PassReader)
	if !ok {
		writeError(w, http.StatusNotImplemented, "pass events are not kept by this backend")
		return
	}
	passID := chi.URLParam(r, "passID")
	rec, err := reader.ReadPass(r.Context(), passID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	events, err := reader.ReadPassEvents(r.Context(), passID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, passDetail{PassRecord: rec, Events: events})
}

// passRequest is the optional body of POST /passes.
type passRequest struct {
	PassID string            `json:"pass_id"`
	Files  []runner.FileMeta `json:"files"`
}

func (s *Server) runPass(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Engine == nil || s.cfg.Manifest == nil {
		writeError(w, http.StatusNotImplemented, "no manifest configured")
		return
	}

	var req passRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a pass is already running")
		return
	}
	defer s.running.Store(false)

	s.mu.Lock()
	res, err := s.cfg.Engine.Run(r.Context(), s.cfg.Manifest, engine.RunOptions{Files: req.Files, PassID: req.PassID})
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("pass failed", "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res.Summary())
}

func statusFor(err error) int {
	var verrs manifest.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrPassNotFound):
		return http.StatusNotFound
	case errors.Is(err, ir.ErrPassExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
