// Package httpapi exposes the cache domain over the service's RPC
// surface: POST /Cache/lookup, /Cache/set and /Cache/delete with JSON
// bodies and bearer-token authentication.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NodeScriptLang/cache-service/internal/auth"
	"github.com/NodeScriptLang/cache-service/internal/domain"
	"github.com/NodeScriptLang/cache-service/internal/models"
	"github.com/NodeScriptLang/cache-service/internal/ratelimit"
)

// Handler serves the cache RPC endpoints.
type Handler struct {
	domain        *domain.CacheDomain
	authenticator auth.Authenticator
	logger        *zap.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(d *domain.CacheDomain, authenticator auth.Authenticator, logger *zap.Logger) *Handler {
	return &Handler{
		domain:        d,
		authenticator: authenticator,
		logger:        logger,
	}
}

// Mux returns the route table for the RPC surface.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /Cache/lookup", h.handleLookup)
	mux.HandleFunc("POST /Cache/set", h.handleSet)
	mux.HandleFunc("POST /Cache/delete", h.handleDelete)
	mux.HandleFunc("GET /status", h.handleStatus)
	return mux
}

type lookupRequest struct {
	Key string `json:"key"`
}

type lookupResponse struct {
	Data *models.CacheData `json:"data"`
}

type setRequest struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	ExpiresAt *int64          `json:"expiresAt"`
}

type deleteRequest struct {
	Key string `json:"key"`
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	token, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req lookupRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.domain.Lookup(r.Context(), token, req.Key)
	if err != nil {
		h.writeError(w, err)
		return
	}
	res := lookupResponse{}
	if entry != nil {
		res.Data = entry.CacheData()
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	token, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req setRequest
	if !h.decode(w, r, &req) {
		return
	}
	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t := time.UnixMilli(*req.ExpiresAt)
		expiresAt = &t
	}
	if err := h.domain.Set(r.Context(), token, req.Key, req.Data, expiresAt); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	token, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req deleteRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.domain.Delete(r.Context(), token, req.Key); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (auth.Token, bool) {
	credential := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	token, err := h.authenticator.Authenticate(credential)
	if err != nil {
		h.writeError(w, err)
		return auth.Token{}, false
	}
	return token, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("InvalidRequest", "malformed request body"))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrAccessDenied):
		h.writeJSON(w, http.StatusForbidden, errorBody("AccessDeniedError", err.Error()))
	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		h.writeJSON(w, http.StatusTooManyRequests, errorBody("RateLimitExceededError", err.Error()))
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorBody("ServerError", "internal error"))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

type errorShape struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func errorBody(name, message string) errorShape {
	return errorShape{Name: name, Message: message}
}
