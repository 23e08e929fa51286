package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklet/tracklet/pkg/accounts"
	"github.com/tracklet/tracklet/pkg/identity"
	"github.com/tracklet/tracklet/pkg/kvstore"
	"github.com/tracklet/tracklet/pkg/permissions"
	"github.com/tracklet/tracklet/pkg/rbac"
	"github.com/tracklet/tracklet/pkg/session"
	"github.com/tracklet/tracklet/pkg/userstore"
)

type apiFixture struct {
	provider  *identity.FakeProvider
	users     *userstore.MemoryStore
	roles     *rbac.RoleStore
	evaluator *rbac.Evaluator
	sessions  *session.Manager
	server    *Server
}

func newTestServer(t *testing.T) *apiFixture {
	t.Helper()

	provider := identity.NewFakeProvider()
	users := userstore.NewMemoryStore()
	kv := kvstore.NewMemoryStore()
	roles := rbac.NewRoleStore(kv)
	evaluator := rbac.NewEvaluator(roles, rbac.EvaluatorOptions{})
	sessions := session.NewManager(kv, session.ManagerOptions{})
	svc := accounts.NewService(provider, users, sessions, accounts.ServiceOptions{})

	return &apiFixture{
		provider:  provider,
		users:     users,
		roles:     roles,
		evaluator: evaluator,
		sessions:  sessions,
		server:    NewServer(svc, evaluator, sessions, Options{}),
	}
}

// seedRole writes a role directly to the store, bypassing the
// escalation gate, and drops any cached value.
func (f *apiFixture) seedRole(t *testing.T, userID string, role permissions.Role) {
	t.Helper()
	require.NoError(t, f.roles.SetRole(t.Context(), userID, role))
	f.evaluator.InvalidateRole(userID)
}

// seedUser registers an account with the provider and mirrors it in the
// local store, returning the provider user ID.
func (f *apiFixture) seedUser(t *testing.T, email, password, username string) string {
	t.Helper()
	id := f.provider.Seed(email, password)
	require.NoError(t, f.users.Put(t.Context(), &userstore.UserRecord{
		ID:       id,
		Email:    email,
		Username: username,
	}))
	return id
}

func doRequest(t *testing.T, server *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	for key, value := range headers {
		r.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	server.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestResponsesCarryRequestID(t *testing.T) {
	f := newTestServer(t)

	w := doRequest(t, f.server, http.MethodGet, "/api/v1/auth/session", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestIncomingRequestIDEchoed(t *testing.T) {
	f := newTestServer(t)

	w := doRequest(t, f.server, http.MethodGet, "/api/v1/auth/session", nil,
		map[string]string{"X-Request-ID": "gateway-7"})

	assert.Equal(t, "gateway-7", w.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	f := newTestServer(t)

	w := doRequest(t, f.server, http.MethodGet, "/api/v1/nope", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
