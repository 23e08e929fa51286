package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FakeProvider is an in-memory Provider for tests. Accounts live in a map
// keyed by lower-cased email; per-account MFA and blanket failure modes
// are injectable.
type FakeProvider struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount
	nextID   int

	// MFAUsers lists emails whose sign-in returns an MFA-pending result
	MFAUsers map[string]bool

	// FailWith, when set, makes every operation fail with this error
	FailWith error

	// SignOutErr makes SignOut fail without affecting other operations
	SignOutErr error

	// ResetRequests records emails passed to SendPasswordReset
	ResetRequests []string
}

type fakeAccount struct {
	id       string
	email    string
	password string
	deleted  bool
}

// NewFakeProvider creates an empty fake
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		accounts: make(map[string]*fakeAccount),
		MFAUsers: make(map[string]bool),
	}
}

// Seed registers an account directly, bypassing password policy
func (f *FakeProvider) Seed(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seedLocked(email, password)
}

func (f *FakeProvider) seedLocked(email, password string) string {
	f.nextID++
	account := &fakeAccount{
		id:       fmt.Sprintf("fake-uid-%d", f.nextID),
		email:    strings.ToLower(email),
		password: password,
	}
	f.accounts[account.email] = account
	return account.id
}

func (f *FakeProvider) result(account *fakeAccount) *SignInResult {
	return &SignInResult{
		Identity: &Identity{
			ID:            account.id,
			Email:         account.email,
			EmailVerified: true,
		},
		IDToken:      "idtoken-" + account.id,
		RefreshToken: "refresh-" + account.id,
		ExpiresIn:    time.Hour,
	}
}

// CreateAccount registers a new account
func (f *FakeProvider) CreateAccount(ctx context.Context, email, password string) (*SignInResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailWith != nil {
		return nil, f.FailWith
	}

	key := strings.ToLower(email)
	if _, exists := f.accounts[key]; exists {
		return nil, NewProviderError(CodeEmailInUse, "EMAIL_EXISTS", nil)
	}
	if len(password) < 6 {
		return nil, NewProviderError(CodeWeakPassword, "WEAK_PASSWORD", nil)
	}

	f.seedLocked(key, password)
	return f.result(f.accounts[key]), nil
}

// SignIn authenticates a seeded account
func (f *FakeProvider) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailWith != nil {
		return nil, f.FailWith
	}

	key := strings.ToLower(email)
	account, exists := f.accounts[key]
	if !exists || account.deleted || account.password != password {
		return nil, NewProviderError(CodeInvalidCredentials, "INVALID_PASSWORD", nil)
	}
	if f.MFAUsers[key] {
		return &SignInResult{MFARequired: true, MFAChallenge: "challenge-" + account.id}, nil
	}
	return f.result(account), nil
}

// SignOut succeeds unless SignOutErr is set
func (f *FakeProvider) SignOut(ctx context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	return f.FailWith
}

// SendPasswordReset records the request
func (f *FakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	f.ResetRequests = append(f.ResetRequests, strings.ToLower(email))
	return nil
}

// UpdatePassword changes the password for the account behind the token
func (f *FakeProvider) UpdatePassword(ctx context.Context, idToken, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	account := f.byTokenLocked(idToken)
	if account == nil {
		return NewProviderError(CodeTokenExpired, "INVALID_ID_TOKEN", nil)
	}
	if len(newPassword) < 6 {
		return NewProviderError(CodeWeakPassword, "WEAK_PASSWORD", nil)
	}
	account.password = newPassword
	return nil
}

// DeleteAccount tombstones the account behind the token
func (f *FakeProvider) DeleteAccount(ctx context.Context, idToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	account := f.byTokenLocked(idToken)
	if account == nil {
		return NewProviderError(CodeTokenExpired, "INVALID_ID_TOKEN", nil)
	}
	account.deleted = true
	return nil
}

// CurrentIdentity resolves the account behind the token
func (f *FakeProvider) CurrentIdentity(ctx context.Context, idToken string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	account := f.byTokenLocked(idToken)
	if account == nil {
		return nil, NewProviderError(CodeUserNotFound, "no account for token", nil)
	}
	return &Identity{ID: account.id, Email: account.email, EmailVerified: true}, nil
}

func (f *FakeProvider) byTokenLocked(idToken string) *fakeAccount {
	id := strings.TrimPrefix(idToken, "idtoken-")
	for _, account := range f.accounts {
		if account.id == id && !account.deleted {
			return account
		}
	}
	return nil
}
