package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/pitwall/internal/domain/model"
)

// PredictionsHandler serves prediction runs.
type PredictionsHandler struct {
	deps     Dependencies
	maxLimit int
	maxBody  int64
}

// NewPredictionsHandler creates a new predictions handler.
func NewPredictionsHandler(deps Dependencies, opts ...Option) *PredictionsHandler {
	h := &PredictionsHandler{
		deps:     deps,
		maxLimit: DefaultMaxLimit,
		maxBody:  defaultMaxBody,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlePredictions handles POST /predictions and GET /predictions?limit=N.
func (h *PredictionsHandler) HandlePredictions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

func (h *PredictionsHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_prediction"
	var req model.RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err))
		return
	}

	async, err := parseBool(r.URL.Query().Get("async"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: async: %v", op, ErrBadRequest, err))
		return
	}

	if !async {
		run, err := h.deps.Predict(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	run, dup, err := h.deps.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusAccepted
	if dup {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/predictions/"+run.ID)
	writeJSON(w, status, ackResponse{RunID: run.ID, Status: run.Status, Duplicate: dup})
}

func (h *PredictionsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	n := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeServiceError(w, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		if v > h.maxLimit {
			writeServiceError(w, fmt.Errorf("%w: %d > %d", ErrLimitExceeded, v, h.maxLimit))
			return
		}
		n = v
	}
	runs, err := h.deps.Recent(r.Context(), n)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, listResponse{Runs: runs, Count: len(runs)})
}

// HandleGetPrediction handles GET /predictions/{run_id} requests.
func (h *PredictionsHandler) HandleGetPrediction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/predictions/")
	if id == "" || strings.Contains(id, "/") {
		writeServiceError(w, fmt.Errorf("%w: %q", ErrBadRunID, id))
		return
	}
	run, err := h.deps.Run(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
