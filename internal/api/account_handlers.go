package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/postwatch/postwatch/internal/fetch"
	"github.com/postwatch/postwatch/internal/models"
)

// AccountRequest is the body for creating a monitored account.
type AccountRequest struct {
	UserID               string `json:"user_id"`
	Platform             string `json:"platform"`
	TargetAccountID      string `json:"target_account_id"`
	CheckIntervalMinutes int    `json:"check_interval_minutes"`
}

// AccountsHandler serves monitored-account management endpoints.
type AccountsHandler struct {
	accounts models.AccountRepository
	posts    models.PostRepository
	router   *fetch.Router
	logger   *slog.Logger
}

func NewAccountsHandler(accounts models.AccountRepository, posts models.PostRepository, router *fetch.Router, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{
		accounts: accounts,
		posts:    posts,
		router:   router,
		logger:   logger,
	}
}

// HandleAccounts dispatches /api/accounts.
func (h *AccountsHandler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listAccounts(w, r)
	case http.MethodPost:
		h.createAccount(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAccountByID dispatches /api/accounts/{id} and its sub-resources.
func (h *AccountsHandler) HandleAccountByID(w http.ResponseWriter, r *http.Request) {
	id, rest := splitResourcePath(r.URL.Path, "/api/accounts/")
	if id == "" {
		http.Error(w, "Account ID required", http.StatusBadRequest)
		return
	}

	switch {
	case rest == "posts" && r.Method == http.MethodGet:
		h.listPosts(w, r, id)
	case rest == "status" && r.Method == http.MethodPut:
		h.updateStatus(w, r, id)
	case rest == "" && r.Method == http.MethodGet:
		h.getAccount(w, r, id)
	case rest == "" && r.Method == http.MethodDelete:
		h.deleteAccount(w, r, id)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *AccountsHandler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := ValidateAccountRequest(&req, h.router.Platforms()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account := &models.MonitoredAccount{
		UserID:               req.UserID,
		Platform:             req.Platform,
		TargetAccountID:      req.TargetAccountID,
		Status:               models.AccountStatusActive,
		CheckIntervalMinutes: req.CheckIntervalMinutes,
	}

	// Resolve the display name up front; a placeholder keeps registration
	// working when the upstream profile cannot be fetched.
	fetcher, err := h.router.Get(req.Platform)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	profile, err := fetcher.FetchProfile(r.Context(), req.TargetAccountID)
	if err != nil {
		h.logger.Warn("profile fetch failed, using placeholder",
			"platform", req.Platform,
			"target_account_id", req.TargetAccountID,
			"error", err,
		)
		profile = fetch.PlaceholderProfile(req.Platform, req.TargetAccountID)
	}
	account.TargetUsername = profile.Username

	if err := h.accounts.Store(account); err != nil {
		h.logger.Error("failed to store account", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

func (h *AccountsHandler) listAccounts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id query parameter required", http.StatusBadRequest)
		return
	}

	accounts, err := h.accounts.ListByUser(userID)
	if err != nil {
		h.logger.Error("failed to list accounts", "user_id", userID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if accounts == nil {
		accounts = []*models.MonitoredAccount{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

func (h *AccountsHandler) getAccount(w http.ResponseWriter, r *http.Request, id string) {
	account, err := h.accounts.GetByID(id)
	if err != nil {
		h.logger.Error("failed to get account", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if account == nil {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *AccountsHandler) updateStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	status := models.AccountStatus(req.Status)
	switch status {
	case models.AccountStatusActive, models.AccountStatusPaused, models.AccountStatusStopped:
	default:
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	account, err := h.accounts.GetByID(id)
	if err != nil {
		h.logger.Error("failed to get account", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if account == nil {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	if err := h.accounts.SetStatus(id, status); err != nil {
		h.logger.Error("failed to update account status", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("account status changed", "id", id, "status", status)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

func (h *AccountsHandler) deleteAccount(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.accounts.Delete(id); err != nil {
		h.logger.Error("failed to delete account", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountsHandler) listPosts(w http.ResponseWriter, r *http.Request, id string) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	posts, err := h.posts.ListByAccount(id, limit)
	if err != nil {
		h.logger.Error("failed to list posts", "account_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []*models.DiscoveredPost{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts": posts,
		"count": len(posts),
	})
}

// splitResourcePath extracts the resource ID and trailing sub-resource from
// a path like /api/accounts/{id}/posts.
func splitResourcePath(path, prefix string) (id, rest string) {
	trimmed := strings.TrimPrefix(path, prefix)
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
