package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tracklet/tracklet/pkg/accounts"
	"github.com/tracklet/tracklet/pkg/httputil"
	"github.com/tracklet/tracklet/pkg/rbac"
)

// UserHandlers serves local profile reads and writes
type UserHandlers struct {
	svc       *accounts.Service
	evaluator *rbac.Evaluator
}

// NewUserHandlers creates the user handler group
func NewUserHandlers(svc *accounts.Service, evaluator *rbac.Evaluator) *UserHandlers {
	return &UserHandlers{svc: svc, evaluator: evaluator}
}

// RegisterRoutes registers the user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/users/{id}", h.getUser).Methods("GET")
	router.HandleFunc("/api/v1/users/{id}", h.updateProfile).Methods("PATCH")
}

type profileUpdateRequest struct {
	Username    *string `json:"username"`
	FullName    *string `json:"full_name"`
	Gender      *string `json:"gender"`
	DateOfBirth *string `json:"date_of_birth"`

	NotificationPreferences map[string]bool `json:"notification_preferences"`
}

func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
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
	if !h.evaluator.CanAccessData(r.Context(), actor, userID, false) {
		httputil.WriteError(w, http.StatusForbidden, "access denied")
		return
	}

	user, err := h.svc.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
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
	if !h.evaluator.CanAccessData(r.Context(), actor, userID, true) {
		httputil.WriteError(w, http.StatusForbidden, "access denied")
		return
	}

	var req profileUpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.svc.UpdateProfile(r.Context(), userID, accounts.ProfileUpdate{
		Username:                req.Username,
		FullName:                req.FullName,
		Gender:                  req.Gender,
		DateOfBirth:             req.DateOfBirth,
		NotificationPreferences: req.NotificationPreferences,
	})
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}
