// Package portal exposes the poster management API used by creators and
// moderators. It is deliberately separate from the redirect surface: the
// redirect endpoint never returns JSON, this one always does.
package portal

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/imagefork/redirect/internal/audit"
	"github.com/imagefork/redirect/internal/metrics"
	"github.com/imagefork/redirect/internal/posters"
)

// Handler serves the poster portal API
type Handler struct {
	store    posters.Store
	auditLog *audit.Logger
	adminKey string
	log      zerolog.Logger
}

// NewHandler creates a portal handler. adminKey guards every route.
func NewHandler(store posters.Store, auditLog *audit.Logger, adminKey string, log zerolog.Logger) *Handler {
	return &Handler{
		store:    store,
		auditLog: auditLog,
		adminKey: adminKey,
		log:      log,
	}
}

// Routes registers the portal endpoints on r
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.requireAdminKey)
	r.Post("/posters", h.createPoster)
	r.Get("/posters", h.listPosters)
	r.Get("/posters/{id}", h.getPoster)
	r.Patch("/posters/{id}", h.updatePoster)
	r.Put("/posters/{id}/images", h.setImage)
}

// requireAdminKey rejects requests without the configured admin key
func (h *Handler) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "admin key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// creatorParam parses the creator query parameter
func creatorParam(r *http.Request) (int64, bool) {
	creator, err := strconv.ParseInt(r.URL.Query().Get("creator"), 10, 64)
	return creator, err == nil && creator > 0
}

// posterIDParam parses the id path segment
func posterIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

type createPosterRequest struct {
	Creator int64 `json:"creator"`
}

func (h *Handler) createPoster(w http.ResponseWriter, r *http.Request) {
	var req createPosterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Creator <= 0 {
		writeError(w, http.StatusBadRequest, "creator is required")
		return
	}

	poster, err := h.store.CreatePoster(r.Context(), req.Creator)
	if err != nil {
		h.log.Error().Err(err).Int64("creator", req.Creator).Msg("poster create failed")
		writeError(w, http.StatusInternalServerError, "poster create failed")
		return
	}

	metrics.PortalMutationsTotal.WithLabelValues("create").Inc()
	h.auditLog.Log(audit.Event{
		Type:    audit.EventPosterCreated,
		Creator: poster.Creator,
		Poster:  poster.ID,
	})
	writeJSON(w, http.StatusCreated, poster)
}

func (h *Handler) listPosters(w http.ResponseWriter, r *http.Request) {
	creator, ok := creatorParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "creator query parameter is required")
		return
	}

	list, err := h.store.PostersByCreator(r.Context(), creator)
	if err != nil {
		h.log.Error().Err(err).Int64("creator", creator).Msg("poster list failed")
		writeError(w, http.StatusInternalServerError, "poster list failed")
		return
	}
	if list == nil {
		list = []posters.Poster{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getPoster(w http.ResponseWriter, r *http.Request) {
	creator, ok := creatorParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "creator query parameter is required")
		return
	}
	id, ok := posterIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid poster id")
		return
	}

	poster, found, err := h.store.GetPoster(r.Context(), creator, id)
	if err != nil {
		h.log.Error().Err(err).Int64("poster", id).Msg("poster get failed")
		writeError(w, http.StatusInternalServerError, "poster get failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "poster not found")
		return
	}
	writeJSON(w, http.StatusOK, poster)
}

type updatePosterRequest struct {
	Creator int64 `json:"creator"`
	Stopped bool  `json:"stopped"`
}

func (h *Handler) updatePoster(w http.ResponseWriter, r *http.Request) {
	id, ok := posterIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid poster id")
		return
	}
	var req updatePosterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Creator <= 0 {
		writeError(w, http.StatusBadRequest, "creator is required")
		return
	}

	found, err := h.store.SetStopped(r.Context(), req.Creator, id, req.Stopped)
	if err != nil {
		h.log.Error().Err(err).Int64("poster", id).Msg("poster update failed")
		writeError(w, http.StatusInternalServerError, "poster update failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "poster not found")
		return
	}

	eventType := audit.EventPosterResumed
	mutation := "resume"
	if req.Stopped {
		eventType = audit.EventPosterStopped
		mutation = "stop"
	}
	metrics.PortalMutationsTotal.WithLabelValues(mutation).Inc()
	h.auditLog.Log(audit.Event{
		Type:    eventType,
		Creator: req.Creator,
		Poster:  id,
	})

	poster, found, err := h.store.GetPoster(r.Context(), req.Creator, id)
	if err != nil || !found {
		// Updated but unreadable; report success without a body.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, poster)
}

type setImageRequest struct {
	Creator int64  `json:"creator"`
	Kind    string `json:"kind"`
	URL     string `json:"url"`
}

func (h *Handler) setImage(w http.ResponseWriter, r *http.Request) {
	id, ok := posterIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid poster id")
		return
	}
	var req setImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Creator <= 0 {
		writeError(w, http.StatusBadRequest, "creator is required")
		return
	}
	kind := posters.Kind(req.Kind)
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be albedo, emissive or normal")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	// The poster must exist and belong to the caller's creator.
	_, found, err := h.store.GetPoster(r.Context(), req.Creator, id)
	if err != nil {
		h.log.Error().Err(err).Int64("poster", id).Msg("poster get failed")
		writeError(w, http.StatusInternalServerError, "poster image update failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "poster not found")
		return
	}

	if err := h.store.SetImageURL(r.Context(), id, kind, req.URL); err != nil {
		h.log.Error().Err(err).Int64("poster", id).Msg("poster image update failed")
		writeError(w, http.StatusInternalServerError, "poster image update failed")
		return
	}

	metrics.PortalMutationsTotal.WithLabelValues("image").Inc()
	h.auditLog.Log(audit.Event{
		Type:    audit.EventPosterImageSet,
		Creator: req.Creator,
		Poster:  id,
		Kind:    req.Kind,
		URL:     req.URL,
	})
	w.WriteHeader(http.StatusNoContent)
}
