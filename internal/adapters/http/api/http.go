// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/adapters/repository"
	service "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// Predict runs a prediction synchronously.
	Predict(ctx context.Context, req model.RunRequest) (model.Run, error)
	// Submit queues a prediction. The bool reports a duplicate of an
	// in-flight request.
	Submit(ctx context.Context, req model.RunRequest) (model.Run, bool, error)

	// Read operations expose stored runs.
	Run(ctx context.Context, id string) (model.Run, error)
	Recent(ctx context.Context, n int) ([]model.Run, error)
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	predictionsHandler *PredictionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		predictionsHandler: NewPredictionsHandler(deps, opts...),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/predictions", MetricsMiddleware(s.predictionsHandler.HandlePredictions, "predictions"))
	mux.HandleFunc("/predictions/", MetricsMiddleware(s.predictionsHandler.HandleGetPrediction, "prediction"))
}

type ackResponse struct {
	RunID     string          `json:"run_id"`
	Status    model.RunStatus `json:"status"`
	Duplicate bool            `json:"duplicate"`
}

type listResponse struct {
	Runs  []model.Run `json:"runs"`
	Count int         `json:"count"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrLimitExceeded):
		return http.StatusBadRequest, "limit_exceeded"
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrBadRunID), errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case provider.IsTerminal(err), errors.Is(err, service.ErrProviderSetup):
		return http.StatusUnprocessableEntity, "unprocessable"
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
