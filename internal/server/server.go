package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bia-energy/telemedida/internal/syncer"
)

// Runner executes one synchronization pass. Satisfied by *syncer.Syncer.
type Runner interface {
	Run(ctx context.Context, date time.Time, force bool) (*syncer.RunResult, error)
}

// Server exposes the synchronization trigger over HTTP so schedulers and
// operators can kick off a run and read back the summary.
type Server struct {
	runner Runner
	logger *slog.Logger
}

// New creates a server around a runner.
func New(runner Runner, logger *slog.Logger) *Server {
	return &Server{
		runner: runner,
		logger: logger,
	}
}

// Routes returns the server's route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sync", s.handleSync)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// syncRequest is the optional trigger body.
type syncRequest struct {
	// FilterDate overrides the target date, formatted YYYY-MM-DD.
	FilterDate string `json:"filter_date"`

	ForceUpdate bool `json:"force_update"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	date := time.Now()
	if req.FilterDate != "" {
		parsed, err := time.Parse("2006-01-02", req.FilterDate)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid filter_date, want YYYY-MM-DD", err)
			return
		}
		date = parsed
	}

	result, err := s.runner.Run(r.Context(), date, req.ForceUpdate)
	if err != nil {
		// Global precondition failure: nothing was synchronized.
		s.writeJSON(w, http.StatusInternalServerError, result)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	s.logger.Warn("request rejected", "status", status, "reason", message, "error", err)
	s.writeJSON(w, status, map[string]string{
		"error":   message,
		"details": err.Error(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
