package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/freeeve/minimalists/api/internal/auth"
	"github.com/freeeve/minimalists/api/internal/config"
	"github.com/freeeve/minimalists/api/internal/logger"
	"github.com/freeeve/minimalists/api/internal/service"
)

// MatchHandler handles match endpoints.
type MatchHandler struct {
	matchSvc *service.MatchService
	validate *config.Validator
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(matchSvc *service.MatchService) *MatchHandler {
	return &MatchHandler{matchSvc: matchSvc, validate: config.NewValidator()}
}

// CreateMatch handles POST /api/v1/matches
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.matchSvc.CreateMatch(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListMatches handles GET /api/v1/matches
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	live, err := h.matchSvc.ListLive(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, live)
}

// History handles GET /api/v1/matches/history
func (h *MatchHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	matches, err := h.matchSvc.History(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if matches == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// GetMatch handles GET /api/v1/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	snap, err := h.matchSvc.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetResult handles GET /api/v1/matches/{id}/result
func (h *MatchHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	m, err := h.matchSvc.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// SubmitCommand handles POST /api/v1/matches/{id}/commands. Requires a
// seat token for the same match.
func (h *MatchHandler) SubmitCommand(w http.ResponseWriter, r *http.Request) {
	seat, ok := h.seatFor(w, r)
	if !ok {
		return
	}
	var cmd service.Command
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Validate(cmd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.matchSvc.SubmitCommand(r.Context(), seat.MatchID, seat.FactionID, cmd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Pause handles POST /api/v1/matches/{id}/pause
func (h *MatchHandler) Pause(w http.ResponseWriter, r *http.Request) {
	seat, ok := h.seatFor(w, r)
	if !ok {
		return
	}
	if err := h.matchSvc.Pause(r.Context(), seat.MatchID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// Resume handles POST /api/v1/matches/{id}/resume
func (h *MatchHandler) Resume(w http.ResponseWriter, r *http.Request) {
	seat, ok := h.seatFor(w, r)
	if !ok {
		return
	}
	if err := h.matchSvc.Resume(r.Context(), seat.MatchID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "playing"})
}

// seatFor returns the caller's seat if it belongs to the match in the path.
func (h *MatchHandler) seatFor(w http.ResponseWriter, r *http.Request) (auth.Seat, bool) {
	seat, ok := auth.SeatFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "seat token required")
		return seat, false
	}
	if seat.MatchID != r.PathValue("id") {
		writeError(w, http.StatusForbidden, "seat token is for another match")
		return seat, false
	}
	return seat, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMatchNotFound), errors.Is(err, service.ErrMatchEnded):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidFactions), errors.Is(err, service.ErrUnknownPolicy):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrMatchNotRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrTooManyMatches):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		ctx := r.Context()
		if id := r.PathValue("id"); id != "" {
			ctx = logger.WithMatchID(ctx, id)
		}
		l := logger.ForContext(ctx)
		l.Error().Err(err).Msg("Match request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
