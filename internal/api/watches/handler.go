// Package watches implements the drift watch CRUD and trigger endpoints.
package watches

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/driftwatchhq/driftwatch/internal/figma"
	"github.com/driftwatchhq/driftwatch/internal/logger"
	"github.com/driftwatchhq/driftwatch/internal/models"
	"github.com/driftwatchhq/driftwatch/internal/reconcile"
	"github.com/driftwatchhq/driftwatch/internal/storage"
)

// Checker runs on-demand reconciliation cycles. Implemented by
// reconcile.Reconciler; tests substitute their own.
type Checker interface {
	CheckWatchByID(ctx context.Context, id string) (reconcile.Outcome, error)
	Rebaseline(ctx context.Context, id string) (*models.PropertySet, error)
}

// Handler handles watch endpoints.
type Handler struct {
	storage storage.Storage
	checker Checker
	log     *logger.Logger
}

func NewHandler(store storage.Storage, checker Checker, log *logger.Logger) *Handler {
	return &Handler{storage: store, checker: checker, log: log}
}

// Request types
type CreateRequest struct {
	OrgID        string `json:"org_id"`
	Name         string `json:"name"`
	FigmaFileKey string `json:"figma_file_key"`
	FigmaNodeID  string `json:"figma_node_id"`
	CodePath     string `json:"code_path"`
	AlertOnDrift *bool  `json:"alert_on_drift"`
	WebhookURL   string `json:"webhook_url"`
}

type UpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	CodePath     *string `json:"code_path,omitempty"`
	AlertOnDrift *bool   `json:"alert_on_drift,omitempty"`
	WebhookURL   *string `json:"webhook_url,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// Response types
type WatchResponse struct {
	ID            string              `json:"id"`
	OrgID         string              `json:"org_id"`
	Name          string              `json:"name,omitempty"`
	FigmaFileKey  string              `json:"figma_file_key"`
	FigmaNodeID   string              `json:"figma_node_id"`
	CodePath      string              `json:"code_path"`
	Snapshot      *models.PropertySet `json:"snapshot,omitempty"`
	Status        string              `json:"status"`
	StatusReason  string              `json:"status_reason,omitempty"`
	IsActive      bool                `json:"is_active"`
	AlertOnDrift  bool                `json:"alert_on_drift"`
	WebhookURL    string              `json:"webhook_url,omitempty"`
	LastCheckedAt string              `json:"last_checked_at,omitempty"`
	LastHealthyAt string              `json:"last_healthy_at,omitempty"`
	CreatedAt     string              `json:"created_at"`
	UpdatedAt     string              `json:"updated_at"`
}

type CheckResponse struct {
	WatchID string `json:"watch_id"`
	Outcome string `json:"outcome"`
}

type RebaselineResponse struct {
	WatchID  string              `json:"watch_id"`
	Snapshot *models.PropertySet `json:"snapshot"`
}

// Create registers a new watch.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if err := ValidateCreate(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	watch := models.NewDriftWatch(req.OrgID, req.FigmaFileKey, req.FigmaNodeID, strings.TrimSpace(req.CodePath))
	watch.ID = uuid.New().String()
	watch.Name = strings.TrimSpace(req.Name)
	watch.WebhookURL = strings.TrimSpace(req.WebhookURL)
	if req.AlertOnDrift != nil {
		watch.AlertOnDrift = *req.AlertOnDrift
	}

	if err := h.storage.Watches().Create(r.Context(), watch); err != nil {
		h.log.Error("create watch failed", "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	h.log.Info("watch created", "watch_id", watch.ID, "org_id", watch.OrgID)
	jsonCreated(w, watchToResponse(watch))
}

// List returns all watches, optionally filtered by org.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := r.URL.Query().Get("org_id")

	var (
		list []*models.DriftWatch
		err  error
	)
	if orgID != "" {
		list, err = h.storage.Watches().ListByOrg(ctx, orgID)
	} else {
		list, err = h.storage.Watches().List(ctx)
	}
	if err != nil {
		h.log.Error("list watches failed", "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*WatchResponse, len(list))
	for i, watch := range list {
		resp[i] = watchToResponse(watch)
	}
	jsonOK(w, resp)
}

// GetByID returns a watch by ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	watch, ok := h.loadWatch(w, r)
	if !ok {
		return
	}
	jsonOK(w, watchToResponse(watch))
}

// Update applies a partial update to a watch.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	watch, ok := h.loadWatch(w, r)
	if !ok {
		return
	}

	if req.Name != nil {
		if err := ValidateName(*req.Name); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		watch.Name = strings.TrimSpace(*req.Name)
	}
	if req.CodePath != nil {
		if err := ValidateCodePath(*req.CodePath); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		watch.CodePath = strings.TrimSpace(*req.CodePath)
	}
	if req.AlertOnDrift != nil {
		watch.AlertOnDrift = *req.AlertOnDrift
	}
	if req.WebhookURL != nil {
		watch.WebhookURL = strings.TrimSpace(*req.WebhookURL)
	}
	if req.IsActive != nil {
		watch.IsActive = *req.IsActive
	}
	watch.UpdatedAt = time.Now().UTC()

	if err := h.storage.Watches().Update(r.Context(), watch); err != nil {
		h.log.Error("update watch failed", "watch_id", watch.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	h.log.Info("watch updated", "watch_id", watch.ID)
	jsonOK(w, watchToResponse(watch))
}

// Delete removes a watch and its alerts.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	watch, ok := h.loadWatch(w, r)
	if !ok {
		return
	}

	if err := h.storage.Watches().Delete(r.Context(), watch.ID); err != nil {
		h.log.Error("delete watch failed", "watch_id", watch.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	h.log.Info("watch deleted", "watch_id", watch.ID)
	jsonNoContent(w)
}

// Check runs one on-demand reconciliation cycle for a watch.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "watch id required")
		return
	}

	outcome, err := h.checker.CheckWatchByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, reconcile.ErrWatchNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "watch not found")
			return
		}
		h.log.Error("check watch failed", "watch_id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, CheckResponse{WatchID: id, Outcome: string(outcome)})
}

// Rebaseline replaces the stored snapshot with the current remote state.
func (h *Handler) Rebaseline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "watch id required")
		return
	}

	snapshot, err := h.checker.Rebaseline(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrWatchNotFound):
			jsonError(w, http.StatusNotFound, errCodeNotFound, "watch not found")
		case errors.Is(err, reconcile.ErrNotConnected):
			jsonError(w, http.StatusConflict, errCodeConflict, "figma integration not connected")
		case figma.IsRateLimited(err):
			jsonError(w, http.StatusTooManyRequests, errCodeRateLimited, "figma rate limit exceeded, retry later")
		default:
			h.log.Error("rebaseline failed", "watch_id", id, "error", err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		}
		return
	}

	h.log.Info("watch rebaselined", "watch_id", id)
	jsonOK(w, RebaselineResponse{WatchID: id, Snapshot: snapshot})
}

// loadWatch resolves the {id} URL param to a watch, writing the error
// response itself when the watch cannot be served.
func (h *Handler) loadWatch(w http.ResponseWriter, r *http.Request) (*models.DriftWatch, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "watch id required")
		return nil, false
	}

	watch, err := h.storage.Watches().GetByID(r.Context(), id)
	if err != nil {
		h.log.Error("get watch failed", "watch_id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, false
	}
	if watch == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "watch not found")
		return nil, false
	}
	return watch, true
}

func watchToResponse(watch *models.DriftWatch) *WatchResponse {
	resp := &WatchResponse{
		ID:           watch.ID,
		OrgID:        watch.OrgID,
		Name:         watch.Name,
		FigmaFileKey: watch.FigmaFileKey,
		FigmaNodeID:  watch.FigmaNodeID,
		CodePath:     watch.CodePath,
		Snapshot:     watch.Snapshot,
		Status:       string(watch.Status),
		StatusReason: watch.StatusReason,
		IsActive:     watch.IsActive,
		AlertOnDrift: watch.AlertOnDrift,
		WebhookURL:   watch.WebhookURL,
		CreatedAt:    watch.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    watch.UpdatedAt.Format(time.RFC3339),
	}
	if watch.LastCheckedAt != nil {
		resp.LastCheckedAt = watch.LastCheckedAt.Format(time.RFC3339)
	}
	if watch.LastHealthyAt != nil {
		resp.LastHealthyAt = watch.LastHealthyAt.Format(time.RFC3339)
	}
	return resp
}
