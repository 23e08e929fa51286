package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklet/tracklet/pkg/identity"
	"github.com/tracklet/tracklet/pkg/kvstore"
	"github.com/tracklet/tracklet/pkg/session"
	"github.com/tracklet/tracklet/pkg/userstore"
)

// countingProvider records how often SignIn is reached
type countingProvider struct {
	identity.Provider
	signIns int
}

func (c *countingProvider) SignIn(ctx context.Context, email, password string) (*identity.SignInResult, error) {
	c.signIns++
	return c.Provider.SignIn(ctx, email, password)
}

// recordingRestorer captures restore triggers
type recordingRestorer struct {
	userIDs []string
	err     error
}

func (r *recordingRestorer) Restore(ctx context.Context, userID string) error {
	r.userIDs = append(r.userIDs, userID)
	return r.err
}

// putFailingStore wraps a user store so writes fail
type putFailingStore struct {
	userstore.Store
}

func (putFailingStore) Put(ctx context.Context, record *userstore.UserRecord) error {
	return errors.New("disk full")
}

// lookupFailingStore wraps a user store so email lookups fail
type lookupFailingStore struct {
	userstore.Store
}

func (lookupFailingStore) FindByEmail(ctx context.Context, email string) (*userstore.UserRecord, error) {
	return nil, errors.New("index corrupted")
}

type fixture struct {
	service  *Service
	provider *identity.FakeProvider
	counting *countingProvider
	users    userstore.Store
	session  *session.Manager
	restorer *recordingRestorer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	provider := identity.NewFakeProvider()
	counting := &countingProvider{Provider: provider}
	users := userstore.NewMemoryStore()
	sessions := session.NewManager(kvstore.NewMemoryStore(), session.ManagerOptions{})
	restorer := &recordingRestorer{}

	return &fixture{
		service:  NewService(counting, users, sessions, ServiceOptions{Restorer: restorer}),
		provider: provider,
		counting: counting,
		users:    users,
		session:  sessions,
		restorer: restorer,
	}
}

func TestSignupSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result := f.service.Signup(ctx, SignupParams{
		Email:    "  Alice@Example.COM ",
		Password: "hunter22",
		Username: "alice_w",
		FullName: "Alice Whitfield",
	})

	require.True(t, result.Success)
	require.NotNil(t, result.User)
	assert.Equal(t, "alice@example.com", result.User.Email, "email lower-cased and trimmed")
	assert.Equal(t, "alice_w", result.User.Username)
	assert.NotEmpty(t, result.IDToken)

	stored, err := f.users.Get(ctx, result.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.NotificationPreferences[userstore.NotificationHydration])
	assert.True(t, stored.NotificationPreferences[userstore.NotificationPeriod])

	assert.True(t, f.session.IsLoggedIn(ctx))
	id, _ := f.session.CurrentUserID(ctx)
	assert.Equal(t, result.User.ID, id)
}

func TestSignupEmailInUse(t *testing.T) {
	f := newFixture(t)
	f.provider.Seed("alice@example.com", "hunter22")
	ctx := context.Background()

	result := f.service.Signup(ctx, SignupParams{Email: "alice@example.com", Password: "hunter22"})

	assert.False(t, result.Success)
	assert.Equal(t, MsgAccountExists, result.Message)
	assert.Nil(t, result.User)
	assert.False(t, f.session.IsLoggedIn(ctx), "failed signup must not set session flags")
}

func TestSignupWeakPassword(t *testing.T) {
	f := newFixture(t)

	result := f.service.Signup(context.Background(), SignupParams{Email: "a@b.com", Password: "123"})
	assert.False(t, result.Success)
	assert.Equal(t, MsgPasswordTooWeak, result.Message)
}

func TestSignupProviderErrorIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.provider.FailWith = identity.NewProviderError(identity.CodeUnavailable, "down", nil)

	result := f.service.Signup(context.Background(), SignupParams{Email: "a@b.com", Password: "hunter22"})
	assert.False(t, result.Success)
	assert.Equal(t, MsgGenericFailure, result.Message)
}

func TestSignupSwallowsPersistenceFailure(t *testing.T) {
	provider := identity.NewFakeProvider()
	sessions := session.NewManager(kvstore.NewMemoryStore(), session.ManagerOptions{})
	service := NewService(provider, putFailingStore{userstore.NewMemoryStore()}, sessions, ServiceOptions{})
	ctx := context.Background()

	result := service.Signup(ctx, SignupParams{Email: "a@b.com", Password: "hunter22"})

	assert.True(t, result.Success, "remote account exists, so signup reports success")
	assert.True(t, sessions.IsLoggedIn(ctx), "session flags still set")
}

func TestLoginByEmailWithLocalRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signup := f.service.Signup(ctx, SignupParams{
		Email: "alice@example.com", Password: "hunter22", Username: "Alice_W",
	})
	require.True(t, signup.Success)
	require.NoError(t, f.session.Clear(ctx))

	result := f.service.Login(ctx, "ALICE@example.com", "hunter22")

	require.True(t, result.Success)
	assert.Equal(t, "Alice_W", result.User.Username, "original username casing preserved")
	assert.True(t, f.session.IsLoggedIn(ctx))
	assert.Equal(t, []string{signup.User.ID}, f.restorer.userIDs)
}

func TestLoginByEmailSynthesizesFallbackRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Remote account exists with no local record.
	f.provider.Seed("carol.m@example.com", "hunter22")

	result := f.service.Login(ctx, "carol.m@example.com", "hunter22")

	require.True(t, result.Success)
	assert.Equal(t, "carol.m", result.User.Username, "username derived from email local-part")
	assert.True(t, result.User.NotificationPreferences[userstore.NotificationMeal])

	stored, err := f.users.FindByEmail(ctx, "carol.m@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored, "fallback record persisted")
	assert.Equal(t, result.User.ID, stored.ID)
}

func TestLoginByEmailSurvivesLocalLookupFailure(t *testing.T) {
	provider := identity.NewFakeProvider()
	provider.Seed("alice@example.com", "hunter22")
	users := lookupFailingStore{userstore.NewMemoryStore()}
	sessions := session.NewManager(kvstore.NewMemoryStore(), session.ManagerOptions{})
	service := NewService(provider, users, sessions, ServiceOptions{})

	result := service.Login(context.Background(), "alice@example.com", "hunter22")
	assert.True(t, result.Success, "email login must reach the provider despite a broken local index")
}

func TestLoginByUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.True(t, f.service.Signup(ctx, SignupParams{
		Email: "alice@example.com", Password: "hunter22", Username: "Alice_W",
	}).Success)
	require.NoError(t, f.session.Clear(ctx))

	result := f.service.Login(ctx, "alice_w", "hunter22")
	require.True(t, result.Success, "username match is case-insensitive")
	assert.Equal(t, "alice@example.com", result.User.Email)
}

func TestLoginUnknownUsernameFailsFast(t *testing.T) {
	f := newFixture(t)

	result := f.service.Login(context.Background(), "ghost", "hunter22")

	assert.False(t, result.Success)
	assert.Equal(t, MsgInvalidCredentials, result.Message)
	assert.Zero(t, f.counting.signIns, "unknown username must not reach the provider")
}

func TestLoginWrongPasswordIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.provider.Seed("alice@example.com", "hunter22")

	result := f.service.Login(context.Background(), "alice@example.com", "wrong")
	assert.False(t, result.Success)
	assert.Equal(t, MsgInvalidCredentials, result.Message)

	result = f.service.Login(context.Background(), "nobody@example.com", "hunter22")
	assert.Equal(t, MsgInvalidCredentials, result.Message,
		"unknown email and wrong password are indistinguishable")
}

func TestLoginMFARequired(t *testing.T) {
	f := newFixture(t)
	f.provider.Seed("mfa@example.com", "hunter22")
	f.provider.MFAUsers["mfa@example.com"] = true
	ctx := context.Background()

	result := f.service.Login(ctx, "mfa@example.com", "hunter22")

	assert.False(t, result.Success)
	assert.True(t, result.MFARequired, "MFA is a distinguished outcome, not a failure")
	assert.NotEmpty(t, result.MFAChallenge)
	assert.Equal(t, MsgMFARequired, result.Message)
	assert.False(t, f.session.IsLoggedIn(ctx), "no session until the challenge completes")
	assert.Empty(t, f.restorer.userIDs)
}

func TestLoginRestoreFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(t)
	f.provider.Seed("alice@example.com", "hunter22")
	f.restorer.err = errors.New("restore service down")

	result := f.service.Login(context.Background(), "alice@example.com", "hunter22")
	assert.True(t, result.Success)
	assert.Len(t, f.restorer.userIDs, 1, "restore was attempted")
}

func TestLogoutClearsSessionEvenWhenProviderFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.True(t, f.service.Signup(ctx, SignupParams{Email: "a@b.com", Password: "hunter22"}).Success)
	require.True(t, f.session.IsLoggedIn(ctx))

	f.provider.SignOutErr = errors.New("network unreachable")
	require.NoError(t, f.service.Logout(ctx, "refresh-token"))

	assert.False(t, f.session.IsLoggedIn(ctx), "flags cleared despite provider failure")
}

func TestResetPasswordIsEnumerationSafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Known and unknown emails behave identically to the caller.
	f.service.ResetPassword(ctx, "Unknown@Example.com")
	assert.Equal(t, []string{"unknown@example.com"}, f.provider.ResetRequests)

	f.provider.FailWith = identity.NewProviderError(identity.CodeUserNotFound, "USER_NOT_FOUND", nil)
	f.service.ResetPassword(ctx, "ghost@example.com")
	// No panic, no error surfaced.
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signup := f.service.Signup(ctx, SignupParams{Email: "a@b.com", Password: "hunter22"})
	require.True(t, signup.Success)

	weak := f.service.UpdatePassword(ctx, signup.IDToken, "123")
	assert.False(t, weak.Success)
	assert.Equal(t, MsgPasswordTooWeak, weak.Message)

	ok := f.service.UpdatePassword(ctx, signup.IDToken, "newpass99")
	assert.True(t, ok.Success)

	login := f.service.Login(ctx, "a@b.com", "newpass99")
	assert.True(t, login.Success)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signup := f.service.Signup(ctx, SignupParams{Email: "a@b.com", Password: "hunter22"})
	require.True(t, signup.Success)

	require.NoError(t, f.service.DeleteAccount(ctx, signup.IDToken, signup.User.ID))

	record, err := f.users.Get(ctx, signup.User.ID)
	require.NoError(t, err)
	assert.Nil(t, record, "local record removed")
	assert.False(t, f.session.IsLoggedIn(ctx))

	login := f.service.Login(ctx, "a@b.com", "hunter22")
	assert.False(t, login.Success, "deleted provider account cannot log in")
}

func TestDeleteAccountProviderFailureAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signup := f.service.Signup(ctx, SignupParams{Email: "a@b.com", Password: "hunter22"})
	require.True(t, signup.Success)

	err := f.service.DeleteAccount(ctx, "bogus-token", signup.User.ID)
	require.Error(t, err)

	record, getErr := f.users.Get(ctx, signup.User.ID)
	require.NoError(t, getErr)
	assert.NotNil(t, record, "local record untouched when provider delete fails")
}

func TestCurrentUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, ok := f.service.CurrentUser(ctx)
	assert.False(t, ok, "no session means no current user")

	signup := f.service.Signup(ctx, SignupParams{Email: "a@b.com", Password: "hunter22", Username: "abby"})
	require.True(t, signup.Success)

	user, ok := f.service.CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, signup.User.ID, user.ID)
	assert.Equal(t, "abby", user.Username)
}

func TestDeleteAccountIdentityMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signup := f.service.Signup(ctx, SignupParams{Email: "a@b.com", Password: "hunter22"})
	require.True(t, signup.Success)

	err := f.service.DeleteAccount(ctx, signup.IDToken, "someone-else")
	assert.ErrorIs(t, err, ErrIdentityMismatch)

	record, getErr := f.users.Get(ctx, signup.User.ID)
	require.NoError(t, getErr)
	assert.NotNil(t, record, "record untouched on identity mismatch")
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signup := f.service.Signup(ctx, SignupParams{
		Email: "a@b.com", Password: "hunter22", Username: "alice", FullName: "Alice",
	})
	require.True(t, signup.Success)

	newName := "Alice Whitfield"
	updated, err := f.service.UpdateProfile(ctx, signup.User.ID, ProfileUpdate{
		FullName:                &newName,
		NotificationPreferences: map[string]bool{userstore.NotificationWorkout: false},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Whitfield", updated.FullName)
	assert.Equal(t, "alice", updated.Username, "unset fields unchanged")
	assert.False(t, updated.NotificationPreferences[userstore.NotificationWorkout])
	assert.True(t, updated.NotificationPreferences[userstore.NotificationHydration],
		"preference merge is per category")

	_, err = f.service.UpdateProfile(ctx, "ghost", ProfileUpdate{FullName: &newName})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
