package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tracklet/tracklet/pkg/accounts"
	"github.com/tracklet/tracklet/pkg/httputil"
	"github.com/tracklet/tracklet/pkg/session"
	"github.com/tracklet/tracklet/pkg/userstore"
)

// AuthHandlers serves signup, login, logout, password operations, and
// session introspection
type AuthHandlers struct {
	svc      *accounts.Service
	sessions *session.Manager
}

// NewAuthHandlers creates the auth handler group
func NewAuthHandlers(svc *accounts.Service, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{svc: svc, sessions: sessions}
}

// RegisterRoutes registers the auth routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/auth/signup", h.signup).Methods("POST")
	router.HandleFunc("/api/v1/auth/login", h.login).Methods("POST")
	router.HandleFunc("/api/v1/auth/logout", h.logout).Methods("POST")
	router.HandleFunc("/api/v1/auth/password", h.updatePassword).Methods("PUT")
	router.HandleFunc("/api/v1/auth/password/reset", h.resetPassword).Methods("POST")
	router.HandleFunc("/api/v1/auth/account", h.deleteAccount).Methods("DELETE")
	router.HandleFunc("/api/v1/auth/session", h.sessionInfo).Methods("GET")
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"date_of_birth"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type updatePasswordRequest struct {
	IDToken     string `json:"id_token"`
	NewPassword string `json:"new_password"`
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

type deleteAccountRequest struct {
	IDToken string `json:"id_token"`
	UserID  string `json:"user_id"`
}

// authResponse is the wire shape of an accounts.AuthResult
type authResponse struct {
	Success      bool                  `json:"success"`
	Message      string                `json:"message,omitempty"`
	User         *userstore.UserRecord `json:"user,omitempty"`
	MFARequired  bool                  `json:"mfa_required,omitempty"`
	MFAChallenge string                `json:"mfa_challenge,omitempty"`
	IDToken      string                `json:"id_token,omitempty"`
	RefreshToken string                `json:"refresh_token,omitempty"`
}

func toAuthResponse(result *accounts.AuthResult) authResponse {
	return authResponse{
		Success:      result.Success,
		Message:      result.Message,
		User:         result.User,
		MFARequired:  result.MFARequired,
		MFAChallenge: result.MFAChallenge,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
	}
}

// statusForFailure maps a failed auth result message onto a status code.
// Credential failures are 401; validation failures 4xx; everything else
// surfaces as a bad gateway since the provider is the upstream.
func statusForFailure(result *accounts.AuthResult) int {
	switch result.Message {
	case accounts.MsgInvalidCredentials:
		return http.StatusUnauthorized
	case accounts.MsgAccountExists:
		return http.StatusConflict
	case accounts.MsgPasswordTooWeak:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (h *AuthHandlers) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result := h.svc.Signup(r.Context(), accounts.SignupParams{
		Email:       req.Email,
		Password:    req.Password,
		Username:    req.Username,
		FullName:    req.FullName,
		Gender:      req.Gender,
		DateOfBirth: req.DateOfBirth,
	})
	if !result.Success {
		httputil.WriteJSON(w, statusForFailure(result), toAuthResponse(result))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAuthResponse(result))
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Identifier == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	result := h.svc.Login(r.Context(), req.Identifier, req.Password)
	switch {
	case result.MFARequired:
		// Challenge pending is not a failure; no session exists yet.
		httputil.WriteJSON(w, http.StatusOK, toAuthResponse(result))
	case !result.Success:
		httputil.WriteJSON(w, statusForFailure(result), toAuthResponse(result))
	default:
		httputil.WriteJSON(w, http.StatusOK, toAuthResponse(result))
	}
}

func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AuthHandlers) updatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IDToken == "" || req.NewPassword == "" {
		httputil.WriteError(w, http.StatusBadRequest, "id_token and new_password are required")
		return
	}

	result := h.svc.UpdatePassword(r.Context(), req.IDToken, req.NewPassword)
	if !result.Success {
		httputil.WriteJSON(w, statusForFailure(result), toAuthResponse(result))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuthResponse(result))
}

func (h *AuthHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		httputil.WriteError(w, http.StatusBadRequest, "email is required")
		return
	}

	// Always accepted so responses don't reveal which emails exist.
	h.svc.ResetPassword(r.Context(), req.Email)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
	})
}

func (h *AuthHandlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IDToken == "" || req.UserID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "id_token and user_id are required")
		return
	}

	if err := h.svc.DeleteAccount(r.Context(), req.IDToken, req.UserID); err != nil {
		if errors.Is(err, accounts.ErrIdentityMismatch) {
			httputil.WriteError(w, http.StatusForbidden, err.Error())
			return
		}
		httputil.WriteError(w, http.StatusBadGateway, "account deletion failed")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AuthHandlers) sessionInfo(w http.ResponseWriter, r *http.Request) {
	userID, _ := h.sessions.CurrentUserID(r.Context())
	resp := map[string]interface{}{
		"logged_in": h.sessions.IsLoggedIn(r.Context()),
		"user_id":   userID,
	}
	if user, ok := h.svc.CurrentUser(r.Context()); ok {
		resp["user"] = user
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
