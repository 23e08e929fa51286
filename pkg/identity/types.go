package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Identity is the provider's view of an account
type Identity struct {
	// ID is the provider-assigned stable account id
	ID string

	Email         string
	EmailVerified bool
	DisplayName   string
}

// SignInResult is the outcome of a successful or MFA-pending sign-in.
// When MFARequired is set the credentials were accepted but a second
// factor is outstanding; Identity and the tokens are empty until the
// challenge completes.
type SignInResult struct {
	Identity *Identity

	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration

	MFARequired  bool
	MFAChallenge string
}

// Provider is the remote identity provider boundary
type Provider interface {
	// CreateAccount registers a new account and signs it in
	CreateAccount(ctx context.Context, email, password string) (*SignInResult, error)

	// SignIn authenticates with email and password
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)

	// SignOut revokes the refresh token; best-effort on most providers
	SignOut(ctx context.Context, refreshToken string) error

	// SendPasswordReset triggers the provider's reset email
	SendPasswordReset(ctx context.Context, email string) error

	// UpdatePassword changes the password of the authenticated account
	UpdatePassword(ctx context.Context, idToken, newPassword string) error

	// DeleteAccount removes the authenticated account at the provider
	DeleteAccount(ctx context.Context, idToken string) error

	// CurrentIdentity resolves the account behind an ID token
	CurrentIdentity(ctx context.Context, idToken string) (*Identity, error)
}

// ErrorCode classifies provider failures
type ErrorCode string

const (
	CodeEmailInUse         ErrorCode = "email_in_use"
	CodeWeakPassword       ErrorCode = "weak_password"
	CodeInvalidCredentials ErrorCode = "invalid_credentials"
	CodeUserNotFound       ErrorCode = "user_not_found"
	CodeTokenExpired       ErrorCode = "token_expired"
	CodeUnavailable        ErrorCode = "unavailable"
	CodeOther              ErrorCode = "other"
)

// ProviderError is a classified provider failure
type ProviderError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("identity provider: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider: %s", e.Code)
}

// Unwrap exposes the underlying cause
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError creates a classified provider error
func NewProviderError(code ErrorCode, message string, err error) *ProviderError {
	return &ProviderError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the error code, returning CodeOther for unclassified
// errors and an empty code for nil
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeOther
}
