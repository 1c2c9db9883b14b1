package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"clubsched/internal/engine"
	"clubsched/internal/model"
	"clubsched/internal/schedule"
)

// handleSlots lists open slots with remaining capacity.
// GET /api/v1/slots?date=YYYY-MM-DD
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	day := r.URL.Query().Get("date")
	if !validDay(day) {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	slots, err := s.engine.OpenSlots(r.Context(), day)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": day, "slots": slots})
}

// handleReservations creates a reservation or lists a day's reservations.
// POST /api/v1/reservations | GET /api/v1/reservations?date=YYYY-MM-DD
func (s *Server) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		day := r.URL.Query().Get("date")
		if !validDay(day) {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		reservations, err := s.engine.ReservationsForDay(r.Context(), day)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"date": day, "reservations": reservations})

	case http.MethodPost:
		var req engine.Request
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if !validDay(req.Day) || !validSlot(req.SlotStart) || req.MemberRef == "" {
			writeError(w, http.StatusBadRequest, "day, slot_start and member_ref are required")
			return
		}

		reservation, err := s.engine.Book(r.Context(), req)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, reservation)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleReservationStatus changes a reservation's status.
// PATCH /api/v1/reservations/{id}/status
func (s *Server) handleReservationStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api/v1/reservations/{id}/status
	if len(parts) != 5 || parts[4] != "status" {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	id, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reservation, err := s.engine.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// handleWeekdayRule updates recurring hours for one weekday.
// PUT /api/v1/rules/hours
func (s *Server) handleWeekdayRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Weekday int    `json:"weekday"`
		Open    string `json:"open"`
		Close   string `json:"close"`
		Closed  bool   `json:"closed"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Weekday < 1 || req.Weekday > 7 {
		writeError(w, http.StatusBadRequest, "weekday must be 1-7 (Monday-Sunday)")
		return
	}
	if !req.Closed {
		if !validSlot(req.Open) || !validSlot(req.Close) || req.Open >= req.Close {
			writeError(w, http.StatusBadRequest, "open must be before close, HH:MM format")
			return
		}
	}

	rule := &model.WeekdayRule{Weekday: req.Weekday, OpenTime: req.Open, CloseTime: req.Close, Closed: req.Closed}
	if err := s.rules.UpsertWeekdayRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "store weekday rule failed")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleOverride sets or removes a per-date override.
// PUT /api/v1/rules/overrides | DELETE /api/v1/rules/overrides?date=
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Date   string `json:"date"`
			Closed bool   `json:"closed"`
			Open   string `json:"open,omitempty"`
			Close  string `json:"close,omitempty"`
			Reason string `json:"reason,omitempty"`
		}
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if !validDay(req.Date) {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		if !req.Closed {
			if !validSlot(req.Open) || !validSlot(req.Close) || req.Open >= req.Close {
				writeError(w, http.StatusBadRequest, "open must be before close, HH:MM format")
				return
			}
		}

		o := &model.DateOverride{Day: req.Date, Closed: req.Closed, OpenTime: req.Open, CloseTime: req.Close, Reason: req.Reason}
		if err := s.rules.SetOverride(r.Context(), o); err != nil {
			writeError(w, http.StatusInternalServerError, "store override failed")
			return
		}
		if s.cache != nil {
			s.cache.Invalidate(r.Context(), req.Date)
		}
		writeJSON(w, http.StatusOK, o)

	case http.MethodDelete:
		day := r.URL.Query().Get("date")
		if !validDay(day) {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		if err := s.rules.DeleteOverride(r.Context(), day); err != nil {
			writeError(w, http.StatusInternalServerError, "delete override failed")
			return
		}
		if s.cache != nil {
			s.cache.Invalidate(r.Context(), day)
		}
		writeJSON(w, http.StatusOK, map[string]string{"date": day, "result": "removed"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleActivity returns the recent-activity feed.
// GET /api/v1/activity?limit=N
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	activity, err := s.rules.ListRecentActivity(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list activity failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}

// writeEngineError maps the engine error taxonomy onto HTTP statuses with
// the error detail preserved for the caller's message.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var cfgErr *schedule.ConfigError
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrSlotUnavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, engine.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &cfgErr):
		if s.logger != nil {
			s.logger.Error().Err(err).Msg("facility configuration error")
		}
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		if s.logger != nil {
			s.logger.Error().Err(err).Msg("internal error")
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
