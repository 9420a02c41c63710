// Package integrations implements the per-organization provider
// credential endpoints.
package integrations

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
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

// ConnectRequest carries the provider credential.
type ConnectRequest struct {
	AccessToken string `json:"access_token"`
}

// ConnectionResponse describes a stored connection. The token itself is
// never echoed back.
type ConnectionResponse struct {
	OrgID     string `json:"org_id"`
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Handler handles integration endpoints.
type Handler struct {
	storage storage.Storage
	log     *logger.Logger
}

func NewHandler(store storage.Storage, log *logger.Logger) *Handler {
	return &Handler{storage: store, log: log}
}

// Connect stores or replaces the credential for (org, provider).
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	orgID, provider, ok := h.params(w, r)
	if !ok {
		return
	}

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	token := strings.TrimSpace(req.AccessToken)
	if token == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "access_token is required")
		return
	}

	conn := models.NewIntegrationConnection(orgID, provider, token)
	conn.ID = uuid.New().String()

	if err := h.storage.Integrations().Upsert(r.Context(), conn); err != nil {
		h.log.Error("connect integration failed", "org_id", orgID, "provider", provider, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	h.log.Info("integration connected", "org_id", orgID, "provider", provider)
	jsonOK(w, connectionToResponse(conn))
}

// Status reports whether the org has a credential stored for the provider.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	orgID, provider, ok := h.params(w, r)
	if !ok {
		return
	}

	conn, err := h.storage.Integrations().GetByOrg(r.Context(), orgID, provider)
	if err != nil {
		h.log.Error("get integration failed", "org_id", orgID, "provider", provider, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if conn == nil {
		jsonOK(w, ConnectionResponse{OrgID: orgID, Provider: string(provider), Connected: false})
		return
	}

	jsonOK(w, connectionToResponse(conn))
}

// Disconnect removes the stored credential.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	orgID, provider, ok := h.params(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	conn, err := h.storage.Integrations().GetByOrg(ctx, orgID, provider)
	if err != nil {
		h.log.Error("disconnect integration failed", "org_id", orgID, "provider", provider, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if conn == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "integration not connected")
		return
	}

	if err := h.storage.Integrations().Delete(ctx, orgID, provider); err != nil {
		h.log.Error("disconnect integration failed", "org_id", orgID, "provider", provider, "error", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	h.log.Info("integration disconnected", "org_id", orgID, "provider", provider)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (string, models.IntegrationProvider, bool) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "org id required")
		return "", "", false
	}

	switch p := chi.URLParam(r, "provider"); p {
	case string(models.IntegrationFigma):
		return orgID, models.IntegrationFigma, true
	case string(models.IntegrationSlack):
		return orgID, models.IntegrationSlack, true
	default:
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "provider must be 'figma' or 'slack'")
		return "", "", false
	}
}

func connectionToResponse(conn *models.IntegrationConnection) ConnectionResponse {
	return ConnectionResponse{
		OrgID:     conn.OrgID,
		Provider:  string(conn.Provider),
		Connected: true,
		CreatedAt: conn.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conn.UpdatedAt.Format(time.RFC3339),
	}
}
