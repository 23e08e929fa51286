package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RESTProvider speaks an identity-toolkit-style HTTP API: JSON operations
// under /v1/accounts:* authorized by a project API key.
type RESTProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// RESTOptions configures the REST provider
type RESTOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewRESTProvider creates a provider for the given endpoint
func NewRESTProvider(opts RESTOptions) (*RESTProvider, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &RESTProvider{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

// signInResponse is the wire shape shared by signUp and signInWithPassword
type signInResponse struct {
	LocalID              string `json:"localId"`
	Email                string `json:"email"`
	DisplayName          string `json:"displayName"`
	IDToken              string `json:"idToken"`
	RefreshToken         string `json:"refreshToken"`
	ExpiresIn            string `json:"expiresIn"`
	MFAPendingCredential string `json:"mfaPendingCredential"`
}

func (r *signInResponse) toResult() *SignInResult {
	if r.MFAPendingCredential != "" {
		return &SignInResult{
			MFARequired:  true,
			MFAChallenge: r.MFAPendingCredential,
		}
	}

	result := &SignInResult{
		Identity: &Identity{
			ID:          r.LocalID,
			Email:       r.Email,
			DisplayName: r.DisplayName,
		},
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
	}
	if seconds, err := strconv.Atoi(r.ExpiresIn); err == nil {
		result.ExpiresIn = time.Duration(seconds) * time.Second
	}
	return result
}

// CreateAccount registers an account via accounts:signUp
func (p *RESTProvider) CreateAccount(ctx context.Context, email, password string) (*SignInResult, error) {
	var resp signInResponse
	err := p.post(ctx, "accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.LocalID == "" {
		return nil, NewProviderError(CodeOther, "provider returned no account id", nil)
	}
	return resp.toResult(), nil
}

// SignIn authenticates via accounts:signInWithPassword
func (p *RESTProvider) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	var resp signInResponse
	err := p.post(ctx, "accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	result := resp.toResult()
	if !result.MFARequired && result.Identity.ID == "" {
		return nil, NewProviderError(CodeInvalidCredentials, "provider returned no account", nil)
	}
	return result, nil
}

// SignOut revokes the refresh token
func (p *RESTProvider) SignOut(ctx context.Context, refreshToken string) error {
	return p.post(ctx, "accounts:revokeToken", map[string]interface{}{
		"refreshToken": refreshToken,
	}, nil)
}

// SendPasswordReset triggers the reset email via accounts:sendOobCode
func (p *RESTProvider) SendPasswordReset(ctx context.Context, email string) error {
	return p.post(ctx, "accounts:sendOobCode", map[string]interface{}{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

// UpdatePassword changes the password via accounts:update
func (p *RESTProvider) UpdatePassword(ctx context.Context, idToken, newPassword string) error {
	return p.post(ctx, "accounts:update", map[string]interface{}{
		"idToken":           idToken,
		"password":          newPassword,
		"returnSecureToken": true,
	}, nil)
}

// DeleteAccount removes the account via accounts:delete
func (p *RESTProvider) DeleteAccount(ctx context.Context, idToken string) error {
	return p.post(ctx, "accounts:delete", map[string]interface{}{
		"idToken": idToken,
	}, nil)
}

// CurrentIdentity resolves the account behind an ID token via
// accounts:lookup
func (p *RESTProvider) CurrentIdentity(ctx context.Context, idToken string) (*Identity, error) {
	var resp struct {
		Users []struct {
			LocalID       string `json:"localId"`
			Email         string `json:"email"`
			EmailVerified bool   `json:"emailVerified"`
			DisplayName   string `json:"displayName"`
		} `json:"users"`
	}
	err := p.post(ctx, "accounts:lookup", map[string]interface{}{
		"idToken": idToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, NewProviderError(CodeUserNotFound, "no account for token", nil)
	}

	user := resp.Users[0]
	return &Identity{
		ID:            user.LocalID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		DisplayName:   user.DisplayName,
	}, nil
}

func (p *RESTProvider) post(ctx context.Context, operation string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return NewProviderError(CodeOther, "failed to encode request", err)
	}

	url := fmt.Sprintf("%s/v1/%s?key=%s", p.baseURL, operation, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewProviderError(CodeOther, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return NewProviderError(CodeUnavailable, "provider unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return NewProviderError(CodeUnavailable, "failed to read response", err)
	}

	if resp.StatusCode >= 400 {
		return classifyRESTError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return NewProviderError(CodeOther, "failed to decode response", err)
		}
	}
	return nil
}

// classifyRESTError maps the provider's error messages onto typed codes
func classifyRESTError(status int, body []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &parsed)
	message := parsed.Error.Message

	switch {
	case message == "EMAIL_EXISTS":
		return NewProviderError(CodeEmailInUse, message, nil)
	case strings.HasPrefix(message, "WEAK_PASSWORD"):
		return NewProviderError(CodeWeakPassword, message, nil)
	case message == "INVALID_PASSWORD",
		message == "EMAIL_NOT_FOUND",
		message == "INVALID_EMAIL",
		strings.HasPrefix(message, "INVALID_LOGIN_CREDENTIALS"):
		return NewProviderError(CodeInvalidCredentials, message, nil)
	case message == "USER_NOT_FOUND":
		return NewProviderError(CodeUserNotFound, message, nil)
	case message == "TOKEN_EXPIRED", message == "INVALID_ID_TOKEN":
		return NewProviderError(CodeTokenExpired, message, nil)
	case status >= 500:
		return NewProviderError(CodeUnavailable, fmt.Sprintf("provider returned %d", status), nil)
	default:
		if message == "" {
			message = fmt.Sprintf("provider returned %d", status)
		}
		return NewProviderError(CodeOther, message, nil)
	}
}
