package documents

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the document operations over REST.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, svc *Service) *Handler {
	return &Handler{svc: svc, logger: logger.With(slog.String("component", "documents_handler"))}
}

// RegisterPublic mounts the endpoints reachable without a session: the
// citizen intake form and tracking lookup.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/documents", h.intake)
	r.Get("/documents/track/{code}", h.track)
}

// Register mounts the staff endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/documents", h.listByArea)
	r.Get("/documents/{id}", h.get)
	r.Put("/documents/{id}", h.update)
	r.Post("/documents/{id}/derive", h.derive)
	r.Post("/documents/{id}/assign", h.assign)
	r.Post("/documents/{id}/finalize", h.finalize)
	r.Post("/documents/{id}/archive", h.archive)
}

type intakeRequest struct {
	Subject     string `json:"subject"`
	SenderName  string `json:"senderName"`
	SenderEmail string `json:"senderEmail"`
	Notes       string `json:"notes"`
	AreaID      int64  `json:"areaId"`
}

func (h *Handler) intake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subject == "" || req.SenderName == "" || req.AreaID == 0 {
		writeError(w, http.StatusBadRequest, "subject, senderName and areaId are required")
		return
	}

	doc, err := h.svc.Intake(r.Context(), IntakeInput{
		Subject:     req.Subject,
		SenderName:  req.SenderName,
		SenderEmail: req.SenderEmail,
		Notes:       req.Notes,
		AreaID:      req.AreaID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Track(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	// Public lookup exposes status only, not the full routing history.
	writeJSON(w, http.StatusOK, map[string]any{
		"trackingCode": doc.TrackingCode,
		"subject":      doc.Subject,
		"status":       doc.Status,
		"updatedAt":    doc.UpdatedAt,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) listByArea(w http.ResponseWriter, r *http.Request) {
	areaID, err := strconv.ParseInt(r.URL.Query().Get("areaId"), 10, 64)
	if err != nil || areaID <= 0 {
		writeError(w, http.StatusBadRequest, "areaId query parameter is required")
		return
	}
	docs, err := h.svc.ListByArea(r.Context(), areaID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if docs == nil {
		docs = []*Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject *string `json:"subject"`
		Notes   *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), UpdateInput(req))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) derive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToAreaID       int64  `json:"toAreaId"`
		AssignedUserID string `json:"assignedUserId"`
		Note           string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ToAreaID <= 0 {
		writeError(w, http.StatusBadRequest, "toAreaId is required")
		return
	}
	doc, err := h.svc.Derive(r.Context(), chi.URLParam(r, "id"), DeriveInput{
		ToAreaID:       req.ToAreaID,
		AssignedUserID: req.AssignedUserID,
		Note:           req.Note,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	doc, err := h.svc.Assign(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Archive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrSameArea):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("document operation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
