package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streakforge/streakd/internal/domain"
	"github.com/streakforge/streakd/internal/infra/metrics"
)

// ─── Streak endpoints ───────────────────────────────────────────────────────

type actionItem struct {
	Type     string         `json:"type" validate:"required,min=1"`
	Metadata map[string]any `json:"metadata"`
}

type updateRequest struct {
	UserID       string       `json:"user_id" validate:"required,min=1"`
	EventTimeUTC time.Time    `json:"event_time_utc" validate:"required"`
	Actions      []actionItem `json:"actions" validate:"required,min=1,dive"`
}

type updateResponse struct {
	UserID  string                    `json:"user_id"`
	Streaks map[string]domain.Verdict `json:"streaks"`
}

// handleUpdate processes a batch of actions for one user.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues("/streaks/update").Observe(time.Since(start).Seconds())
	}()

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RequestsRejected.Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		metrics.RequestsRejected.Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actions := make([]domain.Action, len(req.Actions))
	for i, a := range req.Actions {
		actions[i] = domain.Action{Type: a.Type, Metadata: a.Metadata}
	}

	reqID := uuid.NewString()
	log.Printf("[api] req=%s user=%s actions=%d event_time=%s",
		reqID, req.UserID, len(actions), req.EventTimeUTC.UTC().Format(time.RFC3339))

	streaks, err := s.svc.Process(r.Context(), req.UserID, req.EventTimeUTC.UTC(), actions)
	if err != nil {
		log.Printf("[api] req=%s update failed: %v", reqID, err)
		if errors.Is(err, domain.ErrConfigInvalid) {
			writeError(w, http.StatusInternalServerError, "service configuration error")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error during streak update")
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{UserID: req.UserID, Streaks: streaks})
}

// handleSnapshot reports a user's tracked streaks without mutating them.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id required")
		return
	}

	streaks, err := s.svc.Snapshot(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{UserID: userID, Streaks: streaks})
}
