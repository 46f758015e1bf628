// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/executor"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/logging"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/metrics"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/ops"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/pathguard"
)

// ShutdownTimeout bounds how long in-flight requests get after Serve's
// context is cancelled.
const ShutdownTimeout = 5 * time.Second

// Server provides the task API
type Server struct {
	agent   *executor.Agent
	guard   *pathguard.Guard
	metrics *metrics.Metrics
	mux     *http.ServeMux
	addr    string
	srv     *http.Server
	log     *logging.Logger
}

func New(agent *executor.Agent, guard *pathguard.Guard, m *metrics.Metrics, addr string) *Server {
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		agent:   agent,
		guard:   guard,
		metrics: m,
		mux:     http.NewServeMux(),
		addr:    addr,
		log:     logging.New("server"),
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /run", s.handleRun)
	s.mux.HandleFunc("GET /read", s.handleRead)
	s.mux.HandleFunc("GET /filter_csv", s.handleFilterCSV)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

// response is the envelope for /run and for every error.
type response struct {
	TaskID    string       `json:"task_id,omitempty"`
	Operation operation.ID `json:"operation,omitempty"`
	Status    string       `json:"status"`
	Output    string       `json:"output"`
}

type readResponse struct {
	Status  string `json:"status"`
	Content string `json:"content"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	task := r.URL.Query().Get("task")
	res := s.agent.Handle(r.Context(), task)

	status := http.StatusOK
	if !res.OK() {
		status = statusFor(res.Kind)
	}
	writeJSON(w, status, response{
		TaskID:    res.TaskID,
		Operation: res.Operation,
		Status:    res.Status,
		Output:    res.Output,
	})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, operation.Errorf(operation.KindNotFound, "read", "no path given"))
		return
	}

	data, err := s.guard.ReadFile(ops.LocalPath(path))
	if err != nil {
		s.log.FromContext(r.Context()).Warn("read_failed", map[string]any{"path": path}, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readResponse{Status: operation.StatusSuccess, Content: string(data)})
}

func (s *Server) handleFilterCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	file, column := q.Get("file_path"), q.Get("column")
	if file == "" {
		writeJSON(w, http.StatusBadRequest, response{Status: operation.StatusError, Output: "filter csv: no file_path given"})
		return
	}
	if column == "" {
		writeError(w, operation.Errorf(operation.KindColumnNotFound, "filter csv", "no column given"))
		return
	}

	records, err := ops.FilterCSV(s.guard, file, column, q.Get("value"))
	if err != nil {
		s.log.FromContext(r.Context()).Warn("filter_failed", map[string]any{"file": file, "column": column}, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// statusFor maps a failure kind onto an HTTP status.
func statusFor(kind operation.Kind) int {
	switch kind {
	case operation.KindEmptyTask, operation.KindColumnNotFound:
		return http.StatusBadRequest
	case operation.KindAccessDenied, operation.KindWriteDenied:
		return http.StatusForbidden
	case operation.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(operation.KindOf(err)), response{
		Status: operation.StatusError,
		Output: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return RequestID(s.AccessLog(CORS(JSON(s.mux))))
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		s.Shutdown(shutdownCtx)
	}()

	s.log.Info("listening", map[string]any{"addr": ln.Addr().String(), "root": s.guard.Root()})
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
