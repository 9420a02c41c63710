// Package alerts implements the drift alert read and acknowledge endpoints.
package alerts

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/driftwatchhq/driftwatch/internal/logger"
	"github.com/driftwatchhq/driftwatch/internal/models"
	"github.com/driftwatchhq/driftwatch/internal/storage"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest    = "BAD_REQUEST"
	errCodeNotFound      = "NOT_FOUND"
	errCodeInternalError = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

// Response types
type AlertResponse struct {
	ID             string                  `json:"id"`
	WatchID        string                  `json:"watch_id"`
	OrgID          string                  `json:"org_id"`
	Changes        []models.PropertyChange `json:"changes"`
	Severity       string                  `json:"severity"`
	Acknowledged   bool                    `json:"acknowledged"`
	AcknowledgedAt string                  `json:"acknowledged_at,omitempty"`
	Delivered      bool                    `json:"delivered"`
	DeliveredAt    string                  `json:"delivered_at,omitempty"`
	DeliveryError  string                  `json:"delivery_error,omitempty"`
	CreatedAt      string                  `json:"created_at"`
}

type ListResponse struct {
	Items   []*AlertResponse `json:"items"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

// Handler handles alert endpoints.
type Handler struct {
	storage storage.Storage
	log     *logger.Logger
}

func NewHandler(store storage.Storage, log *logger.Logger) *Handler {
	return &Handler{storage: store, log: log}
}

// List returns alerts across all watches, newest first, with pagination.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)
	offset := (page - 1) * perPage

	items, total, err := h.storage.Alerts().List(r.Context(), perPage, offset)
	if err != nil {
		h.log.Error("list alerts failed", "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, listToResponse(items, total, page, perPage))
}

// ListByWatch returns the alerts recorded for one watch.
func (h *Handler) ListByWatch(w http.ResponseWriter, r *http.Request) {
	watchID := chi.URLParam(r, "id")
	if watchID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "watch id required")
		return
	}

	ctx := r.Context()
	watch, err := h.storage.Watches().GetByID(ctx, watchID)
	if err != nil {
		h.log.Error("list watch alerts failed", "watch_id", watchID, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if watch == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "watch not found")
		return
	}

	page, perPage := pagination(r)
	offset := (page - 1) * perPage

	items, total, err := h.storage.Alerts().ListByWatch(ctx, watchID, perPage, offset)
	if err != nil {
		h.log.Error("list watch alerts failed", "watch_id", watchID, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, listToResponse(items, total, page, perPage))
}

// GetByID returns an alert by ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	alert, err := h.storage.Alerts().GetByID(r.Context(), id)
	if err != nil {
		h.log.Error("get alert failed", "alert_id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	jsonOK(w, alertToResponse(alert))
}

// Acknowledge marks an alert as seen. Idempotent.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	ctx := r.Context()
	alert, err := h.storage.Alerts().GetByID(ctx, id)
	if err != nil {
		h.log.Error("acknowledge alert failed", "alert_id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	if !alert.Acknowledged {
		now := time.Now().UTC()
		if err := h.storage.Alerts().Acknowledge(ctx, id, now); err != nil {
			h.log.Error("acknowledge alert failed", "alert_id", id, "error", err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
			return
		}
		alert.Acknowledged = true
		alert.AcknowledgedAt = &now
	}

	jsonOK(w, alertToResponse(alert))
}

func pagination(r *http.Request) (page, perPage int) {
	page = 1
	perPage = 50
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if pp := r.URL.Query().Get("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 && v <= 100 {
			perPage = v
		}
	}
	return page, perPage
}

func listToResponse(alerts []*models.DriftAlert, total int64, page, perPage int) ListResponse {
	items := make([]*AlertResponse, len(alerts))
	for i, a := range alerts {
		items[i] = alertToResponse(a)
	}
	return ListResponse{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}
}

func alertToResponse(a *models.DriftAlert) *AlertResponse {
	resp := &AlertResponse{
		ID:            a.ID,
		WatchID:       a.WatchID,
		OrgID:         a.OrgID,
		Changes:       a.Changes,
		Severity:      string(a.Severity),
		Acknowledged:  a.Acknowledged,
		Delivered:     a.Delivered,
		DeliveryError: a.DeliveryError,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	if a.AcknowledgedAt != nil {
		resp.AcknowledgedAt = a.AcknowledgedAt.Format(time.RFC3339)
	}
	if a.DeliveredAt != nil {
		resp.DeliveredAt = a.DeliveredAt.Format(time.RFC3339)
	}
	return resp
}
