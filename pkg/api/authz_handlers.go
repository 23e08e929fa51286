package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tracklet/tracklet/pkg/httputil"
	"github.com/tracklet/tracklet/pkg/permissions"
	"github.com/tracklet/tracklet/pkg/rbac"
)

// AuthzHandlers serves roles, capability checks, healthcare access
// grants, and data access decisions
type AuthzHandlers struct {
	evaluator *rbac.Evaluator
}

// NewAuthzHandlers creates the authorization handler group
func NewAuthzHandlers(evaluator *rbac.Evaluator) *AuthzHandlers {
	return &AuthzHandlers{evaluator: evaluator}
}

// RegisterRoutes registers the authorization routes
func (h *AuthzHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/users/{id}/role", h.getRole).Methods("GET")
	router.HandleFunc("/api/v1/users/{id}/role", h.setRole).Methods("PUT")
	router.HandleFunc("/api/v1/users/{id}/capabilities/{capability}", h.checkCapability).Methods("GET")
	router.HandleFunc("/api/v1/users/{id}/grants", h.createGrant).Methods("POST")
	router.HandleFunc("/api/v1/users/{id}/grants/{viewer}", h.revokeGrant).Methods("DELETE")
	router.HandleFunc("/api/v1/access/check", h.checkAccess).Methods("POST")
}

type setRoleRequest struct {
	Role string `json:"role"`
}

type createGrantRequest struct {
	ViewerID string `json:"viewer_id"`
	// ExpiresAt is RFC 3339; nil means the grant does not expire
	ExpiresAt *time.Time `json:"expires_at"`
}

type accessCheckRequest struct {
	RequesterID string `json:"requester_id"`
	OwnerID     string `json:"owner_id"`
	Write       bool   `json:"write"`
}

func (h *AuthzHandlers) getRole(w http.ResponseWriter, r *http.Request) {
	userID, err := httputil.PathVar(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	role := h.evaluator.GetRole(r.Context(), userID)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"role":         role,
		"capabilities": permissions.CapabilitySet(role),
	})
}

func (h *AuthzHandlers) setRole(w http.ResponseWriter, r *http.Request) {
	userID, err := httputil.PathVar(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := actorID(r)
	if actor == "" {
		httputil.WriteError(w, http.StatusUnauthorized, "missing X-Actor-ID header")
		return
	}

	var req setRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Role == "" {
		httputil.WriteError(w, http.StatusBadRequest, "role is required")
		return
	}

	if err := h.evaluator.SetRole(r.Context(), actor, userID, permissions.ParseRole(req.Role)); err != nil {
		if errors.Is(err, rbac.ErrNotAuthorized) {
			httputil.WriteError(w, http.StatusForbidden, "role changes require manage_system_settings")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to store role")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AuthzHandlers) checkCapability(w http.ResponseWriter, r *http.Request) {
	userID, err := httputil.PathVar(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	capName, err := httputil.PathVar(r, "capability")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	capability := permissions.Capability(capName)
	known := false
	for _, c := range permissions.AllCapabilities() {
		if c == capability {
			known = true
			break
		}
	}
	if !known {
		httputil.WriteError(w, http.StatusNotFound, "unknown capability: "+capName)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    userID,
		"capability": capability,
		"allowed":    h.evaluator.HasPermission(r.Context(), userID, capability),
	})
}

func (h *AuthzHandlers) createGrant(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httputil.PathVar(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req createGrantRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ViewerID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "viewer_id is required")
		return
	}

	if err := h.evaluator.GrantHealthcareAccess(r.Context(), ownerID, req.ViewerID, req.ExpiresAt); err != nil {
		if errors.Is(err, rbac.ErrViewerRoleRequired) {
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to store grant")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"owner_id":   ownerID,
		"viewer_id":  req.ViewerID,
		"expires_at": req.ExpiresAt,
	})
}

func (h *AuthzHandlers) revokeGrant(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httputil.PathVar(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	viewerID, err := httputil.PathVar(r, "viewer")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Revocation is idempotent; revoking an absent grant succeeds.
	if err := h.evaluator.RevokeHealthcareAccess(r.Context(), ownerID, viewerID); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to revoke grant")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AuthzHandlers) checkAccess(w http.ResponseWriter, r *http.Request) {
	var req accessCheckRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RequesterID == "" || req.OwnerID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "requester_id and owner_id are required")
		return
	}

	allowed := h.evaluator.CanAccessData(r.Context(), req.RequesterID, req.OwnerID, req.Write)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"requester_id": req.RequesterID,
		"owner_id":     req.OwnerID,
		"write":        req.Write,
		"allowed":      allowed,
	})
}
