package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grubwheel/grubwheel/pkg/classify"
	"github.com/grubwheel/grubwheel/pkg/geocode"
	"github.com/grubwheel/grubwheel/pkg/session"
	"github.com/grubwheel/grubwheel/pkg/wheel"
)

// Handler serves the session API.
type Handler struct {
	sessions *SessionManager
}

// NewHandler creates a new Handler.
func NewHandler(sessions *SessionManager) *Handler {
	return &Handler{sessions: sessions}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("Failed to encode response: %v", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// sessionFromRequest resolves the {id} URL parameter, writing the error
// response itself when the session is unknown.
func (h *Handler) sessionFromRequest(w http.ResponseWriter, r *http.Request) *session.Session {
	id := chi.URLParam(r, "id")
	s := h.sessions.Get(id)
	if s == nil {
		respondError(w, http.StatusNotFound, "unknown session")
	}
	return s
}

// CreateSession starts a new session and returns its initial state.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	respondJSON(w, http.StatusCreated, s.Snapshot())
}

// GetState returns the full session snapshot.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// SearchLocations resolves a free-text query into city candidates.
func (h *Handler) SearchLocations(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	candidates, err := s.ResolveLocations(r.Context(), query)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"candidates": candidates})
}

// ChooseLocation commits a location and fetches its venues.
func (h *Handler) ChooseLocation(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}

	var loc geocode.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid location payload")
		return
	}
	if loc.Lat == 0 && loc.Lon == 0 {
		respondError(w, http.StatusBadRequest, "location has no coordinates")
		return
	}

	if err := s.ChooseLocation(r.Context(), loc); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// Reload refetches venues for the current location.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}

	if err := s.Reload(r.Context()); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// ToggleCategory flips a single category exclusion.
func (h *Handler) ToggleCategory(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}

	var body struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Category == "" {
		respondError(w, http.StatusBadRequest, "missing category")
		return
	}

	s.ToggleCategory(body.Category)
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// IncludeAllCategories clears every exclusion.
func (h *Handler) IncludeAllCategories(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}
	s.IncludeAll()
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// ExcludeAllCategories excludes every known category.
func (h *Handler) ExcludeAllCategories(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}
	s.ExcludeAll()
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// SetKinds replaces the coarse structural toggles.
func (h *Handler) SetKinds(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}

	var kinds classify.KindFilter
	if err := json.NewDecoder(r.Body).Decode(&kinds); err != nil {
		respondError(w, http.StatusBadRequest, "invalid kind filter payload")
		return
	}

	s.SetKindFilter(kinds)
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// GetWheel returns the rendered slice geometry.
func (h *Handler) GetWheel(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}

	state := s.Snapshot()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"slices":   state.Slices,
		"rotation": state.Rotation,
		"spinning": state.Spinning,
	})
}

// Spin draws a venue and starts the animation.
func (h *Handler) Spin(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}

	result, err := s.Spin()
	if err != nil {
		switch {
		case errors.Is(err, wheel.ErrNoCandidates):
			respondError(w, http.StatusConflict, "no venues to spin for")
		case errors.Is(err, wheel.ErrSpinInProgress):
			respondError(w, http.StatusConflict, "spin already in progress")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}
