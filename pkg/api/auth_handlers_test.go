package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupEndpoint(t *testing.T) {
	f := newTestServer(t)

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/signup", signupRequest{
		Email:    "Alice@Example.com",
		Password: "hunter22",
		Username: "alice",
	}, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "alice", user["username"])

	// Signup establishes a session.
	w = doRequest(t, f.server, http.MethodGet, "/api/v1/auth/session", nil, nil)
	assert.Equal(t, true, decodeBody(t, w)["logged_in"])
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newTestServer(t)
	f.provider.Seed("alice@example.com", "hunter22")

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/signup", signupRequest{
		Email:    "alice@example.com",
		Password: "hunter22",
	}, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "account already exists", decodeBody(t, w)["message"])
}

func TestSignupWeakPassword(t *testing.T) {
	f := newTestServer(t)

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/signup", signupRequest{
		Email:    "alice@example.com",
		Password: "abc",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "password too weak", decodeBody(t, w)["message"])
}

func TestSignupMissingFields(t *testing.T) {
	f := newTestServer(t)

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/signup", signupRequest{
		Email: "alice@example.com",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginByEmail(t *testing.T) {
	f := newTestServer(t)
	f.seedUser(t, "alice@example.com", "hunter22", "alice")

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/login", loginRequest{
		Identifier: "alice@example.com",
		Password:   "hunter22",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["id_token"])
	assert.NotEmpty(t, body["refresh_token"])
}

func TestLoginByUsername(t *testing.T) {
	f := newTestServer(t)
	f.seedUser(t, "alice@example.com", "hunter22", "Alice")

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/login", loginRequest{
		Identifier: "alice",
		Password:   "hunter22",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newTestServer(t)
	f.seedUser(t, "alice@example.com", "hunter22", "alice")

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/login", loginRequest{
		Identifier: "alice@example.com",
		Password:   "wrong",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email/username or password", decodeBody(t, w)["message"])
}

func TestLoginUnknownUsername(t *testing.T) {
	f := newTestServer(t)

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/login", loginRequest{
		Identifier: "nobody",
		Password:   "hunter22",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginMFAPending(t *testing.T) {
	f := newTestServer(t)
	f.seedUser(t, "alice@example.com", "hunter22", "alice")
	f.provider.MFAUsers["alice@example.com"] = true

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/login", loginRequest{
		Identifier: "alice@example.com",
		Password:   "hunter22",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["mfa_required"])
	assert.NotEmpty(t, body["mfa_challenge"])
	assert.Nil(t, body["id_token"])

	// No session until the challenge completes.
	w = doRequest(t, f.server, http.MethodGet, "/api/v1/auth/session", nil, nil)
	assert.Equal(t, false, decodeBody(t, w)["logged_in"])
}

func TestLogoutEndpoint(t *testing.T) {
	f := newTestServer(t)
	f.seedUser(t, "alice@example.com", "hunter22", "alice")

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/login", loginRequest{
		Identifier: "alice@example.com",
		Password:   "hunter22",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	refreshToken := decodeBody(t, w)["refresh_token"].(string)

	w = doRequest(t, f.server, http.MethodPost, "/api/v1/auth/logout", logoutRequest{
		RefreshToken: refreshToken,
	}, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, f.server, http.MethodGet, "/api/v1/auth/session", nil, nil)
	assert.Equal(t, false, decodeBody(t, w)["logged_in"])
}

func TestResetPasswordAlwaysAccepted(t *testing.T) {
	f := newTestServer(t)

	w := doRequest(t, f.server, http.MethodPost, "/api/v1/auth/password/reset", resetPasswordRequest{
		Email: "unknown@example.com",
	}, nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestUpdatePasswordEndpoint(t *testing.T) {
	f := newTestServer(t)
	id := f.seedUser(t, "alice@example.com", "hunter22", "alice")
	idToken := "idtoken-" + id

	w := doRequest(t, f.server, http.MethodPut, "/api/v1/auth/password", updatePasswordRequest{
		IDToken:     idToken,
		NewPassword: "abc",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, f.server, http.MethodPut, "/api/v1/auth/password", updatePasswordRequest{
		IDToken:     idToken,
		NewPassword: "new-password",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteAccountEndpoint(t *testing.T) {
	f := newTestServer(t)
	id := f.seedUser(t, "alice@example.com", "hunter22", "alice")

	w := doRequest(t, f.server, http.MethodDelete, "/api/v1/auth/account", deleteAccountRequest{
		IDToken: "idtoken-" + id,
		UserID:  id,
	}, nil)

	require.Equal(t, http.StatusNoContent, w.Code)

	record, err := f.users.Get(t.Context(), id)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestDeleteAccountEndpointIdentityMismatch(t *testing.T) {
	f := newTestServer(t)
	id := f.seedUser(t, "alice@example.com", "hunter22", "alice")
	require.NoError(t, f.sessions.SetLoggedIn(t.Context(), id))

	w := doRequest(t, f.server, http.MethodDelete, "/api/v1/auth/account", deleteAccountRequest{
		IDToken: "idtoken-" + id,
		UserID:  "someone-else",
	}, nil)

	require.Equal(t, http.StatusForbidden, w.Code)

	record, err := f.users.Get(t.Context(), id)
	require.NoError(t, err)
	assert.NotNil(t, record)
}

func TestSessionEndpointDefault(t *testing.T) {
	f := newTestServer(t)

	w := doRequest(t, f.server, http.MethodGet, "/api/v1/auth/session", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["logged_in"])
	assert.Empty(t, body["user_id"])
}
