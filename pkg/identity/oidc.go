package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCProvider authenticates against an OpenID Connect issuer using the
// resource-owner password grant. Account management operations the OIDC
// core does not define (registration, password reset) go through the
// issuer's account endpoints when configured.
type OIDCProvider struct {
	config       OIDCOptions
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	httpClient   *http.Client

	revocationEndpoint string
}

// OIDCOptions configures the OIDC provider
type OIDCOptions struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// Optional account-management endpoints; operations that need an
	// unconfigured endpoint fail with CodeOther.
	RegistrationEndpoint  string
	PasswordResetEndpoint string

	Timeout time.Duration
}

// Validate checks the required fields
func (o OIDCOptions) Validate() error {
	if o.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if o.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	hasOpenID := false
	for _, scope := range o.Scopes {
		if scope == oidc.ScopeOpenID {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return fmt.Errorf("'openid' scope is required")
	}
	return nil
}

// NewOIDCProvider discovers the issuer and builds the provider
func NewOIDCProvider(ctx context.Context, opts OIDCOptions) (*OIDCProvider, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	provider, err := oidc.NewProvider(ctx, opts.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC issuer: %w", err)
	}

	var discovered struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	// Revocation support is optional; absence just makes SignOut a no-op.
	_ = provider.Claims(&discovered)

	return &OIDCProvider{
		config:   opts,
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: opts.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       opts.Scopes,
		},
		httpClient:         &http.Client{Timeout: opts.Timeout},
		revocationEndpoint: discovered.RevocationEndpoint,
	}, nil
}

// SignIn exchanges the credentials through the password grant and verifies
// the returned ID token
func (p *OIDCProvider) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	ctx = oidc.ClientContext(ctx, p.httpClient)

	token, err := p.oauth2Config.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		if challenge, pending := mfaChallengeFromError(err); pending {
			return &SignInResult{MFARequired: true, MFAChallenge: challenge}, nil
		}
		return nil, classifyOAuth2Error(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, NewProviderError(CodeOther, "token response missing id_token", nil)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, NewProviderError(CodeOther, "ID token verification failed", err)
	}

	ident, err := identityFromIDToken(idToken)
	if err != nil {
		return nil, err
	}

	result := &SignInResult{
		Identity:     ident,
		IDToken:      rawIDToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		result.ExpiresIn = time.Until(token.Expiry)
	}
	return result, nil
}

// CreateAccount registers through the configured registration endpoint and
// then signs in
func (p *OIDCProvider) CreateAccount(ctx context.Context, email, password string) (*SignInResult, error) {
	if p.config.RegistrationEndpoint == "" {
		return nil, NewProviderError(CodeOther, "registration endpoint not configured", nil)
	}

	form := url.Values{
		"email":    {email},
		"password": {password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.RegistrationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewProviderError(CodeOther, "failed to build registration request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, NewProviderError(CodeUnavailable, "registration endpoint unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, NewProviderError(CodeEmailInUse, "account already exists", nil)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, NewProviderError(CodeWeakPassword, "password rejected by policy", nil)
	case resp.StatusCode >= 400:
		return nil, NewProviderError(CodeOther,
			fmt.Sprintf("registration failed with status %d", resp.StatusCode), nil)
	}

	return p.SignIn(ctx, email, password)
}

// SignOut revokes the refresh token when the issuer advertises a
// revocation endpoint
func (p *OIDCProvider) SignOut(ctx context.Context, refreshToken string) error {
	if p.revocationEndpoint == "" || refreshToken == "" {
		return nil
	}

	form := url.Values{
		"token":           {refreshToken},
		"token_type_hint": {"refresh_token"},
		"client_id":       {p.config.ClientID},
		"client_secret":   {p.config.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.revocationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return NewProviderError(CodeOther, "failed to build revocation request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return NewProviderError(CodeUnavailable, "revocation endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return NewProviderError(CodeOther,
			fmt.Sprintf("revocation failed with status %d", resp.StatusCode), nil)
	}
	return nil
}

// SendPasswordReset posts to the configured reset endpoint
func (p *OIDCProvider) SendPasswordReset(ctx context.Context, email string) error {
	if p.config.PasswordResetEndpoint == "" {
		return NewProviderError(CodeOther, "password reset endpoint not configured", nil)
	}

	form := url.Values{"email": {email}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.PasswordResetEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return NewProviderError(CodeOther, "failed to build reset request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return NewProviderError(CodeUnavailable, "reset endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return NewProviderError(CodeOther,
			fmt.Sprintf("reset failed with status %d", resp.StatusCode), nil)
	}
	return nil
}

// UpdatePassword is not part of the OIDC core; deployments manage
// passwords through the issuer's account console
func (p *OIDCProvider) UpdatePassword(ctx context.Context, idToken, newPassword string) error {
	return NewProviderError(CodeOther, "password updates are managed by the OIDC issuer", nil)
}

// DeleteAccount is not part of the OIDC core
func (p *OIDCProvider) DeleteAccount(ctx context.Context, idToken string) error {
	return NewProviderError(CodeOther, "account deletion is managed by the OIDC issuer", nil)
}

// CurrentIdentity verifies the ID token and maps its claims
func (p *OIDCProvider) CurrentIdentity(ctx context.Context, rawIDToken string) (*Identity, error) {
	ctx = oidc.ClientContext(ctx, p.httpClient)

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, NewProviderError(CodeTokenExpired, "ID token verification failed", err)
	}
	return identityFromIDToken(idToken)
}

func identityFromIDToken(idToken *oidc.IDToken) (*Identity, error) {
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, NewProviderError(CodeOther, "failed to parse ID token claims", err)
	}
	if idToken.Subject == "" {
		return nil, NewProviderError(CodeOther, "ID token missing subject", nil)
	}

	return &Identity{
		ID:            idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		DisplayName:   claims.Name,
	}, nil
}

// mfaChallengeFromError detects the token-error extension some issuers
// use to defer to a second factor (error=mfa_required with an mfa_token
// in the body). The challenge reference feeds the follow-up verification
// step.
func mfaChallengeFromError(err error) (string, bool) {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) || retrieveErr.ErrorCode != "mfa_required" {
		return "", false
	}
	var body struct {
		MFAToken string `json:"mfa_token"`
	}
	_ = json.Unmarshal(retrieveErr.Body, &body)
	return body.MFAToken, true
}

// classifyOAuth2Error maps token endpoint failures onto typed codes
func classifyOAuth2Error(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return NewProviderError(CodeInvalidCredentials, "credentials rejected", err)
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			return NewProviderError(CodeUnavailable, "issuer unavailable", err)
		}
		return NewProviderError(CodeOther, retrieveErr.ErrorCode, err)
	}
	return NewProviderError(CodeUnavailable, "token endpoint unreachable", err)
}
