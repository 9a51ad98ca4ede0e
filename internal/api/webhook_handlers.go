package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/postwatch/postwatch/internal/models"
)

// WebhookRequest is the body for creating or updating a webhook destination.
type WebhookRequest struct {
	UserID   string            `json:"user_id"`
	Provider string            `json:"provider"`
	URL      string            `json:"url"`
	Secret   string            `json:"secret,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Template string            `json:"template,omitempty"`
	Active   *bool             `json:"active,omitempty"`
}

// WebhooksHandler serves webhook destination management endpoints.
type WebhooksHandler struct {
	webhooks models.WebhookRepository
	logger   *slog.Logger
}

func NewWebhooksHandler(webhooks models.WebhookRepository, logger *slog.Logger) *WebhooksHandler {
	return &WebhooksHandler{webhooks: webhooks, logger: logger}
}

// HandleWebhooks dispatches /api/webhooks.
func (h *WebhooksHandler) HandleWebhooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listWebhooks(w, r)
	case http.MethodPost:
		h.createWebhook(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleWebhookByID dispatches /api/webhooks/{id}.
func (h *WebhooksHandler) HandleWebhookByID(w http.ResponseWriter, r *http.Request) {
	id, rest := splitResourcePath(r.URL.Path, "/api/webhooks/")
	if id == "" || rest != "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getWebhook(w, r, id)
	case http.MethodDelete:
		h.deleteWebhook(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *WebhooksHandler) createWebhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := ValidateWebhookRequest(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	dest := &models.WebhookDestination{
		UserID:   req.UserID,
		Provider: models.WebhookProvider(req.Provider),
		URL:      req.URL,
		Secret:   req.Secret,
		Headers:  req.Headers,
		Template: req.Template,
		Active:   active,
	}
	if err := h.webhooks.Store(dest); err != nil {
		h.logger.Error("failed to store webhook destination", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, dest)
}

func (h *WebhooksHandler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id query parameter required", http.StatusBadRequest)
		return
	}

	dests, err := h.webhooks.ListActive(userID)
	if err != nil {
		h.logger.Error("failed to list webhook destinations", "user_id", userID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if dests == nil {
		dests = []*models.WebhookDestination{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"webhooks": dests,
		"count":    len(dests),
	})
}

func (h *WebhooksHandler) getWebhook(w http.ResponseWriter, r *http.Request, id string) {
	dest, err := h.webhooks.GetByID(id)
	if err != nil {
		h.logger.Error("failed to get webhook destination", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if dest == nil {
		http.Error(w, "Webhook destination not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, dest)
}

func (h *WebhooksHandler) deleteWebhook(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.webhooks.Delete(id); err != nil {
		h.logger.Error("failed to delete webhook destination", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
