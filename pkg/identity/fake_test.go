package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeProviderLifecycle(t *testing.T) {
	fake := NewFakeProvider()
	ctx := context.Background()

	created, err := fake.CreateAccount(ctx, "Alice@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Identity.Email)

	_, err = fake.CreateAccount(ctx, "alice@example.com", "hunter22")
	assert.Equal(t, CodeEmailInUse, CodeOf(err))

	signedIn, err := fake.SignIn(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, created.Identity.ID, signedIn.Identity.ID)

	_, err = fake.SignIn(ctx, "alice@example.com", "wrong")
	assert.Equal(t, CodeInvalidCredentials, CodeOf(err))

	require.NoError(t, fake.UpdatePassword(ctx, signedIn.IDToken, "newpass99"))
	_, err = fake.SignIn(ctx, "alice@example.com", "hunter22")
	assert.Equal(t, CodeInvalidCredentials, CodeOf(err))
	_, err = fake.SignIn(ctx, "alice@example.com", "newpass99")
	assert.NoError(t, err)

	ident, err := fake.CurrentIdentity(ctx, signedIn.IDToken)
	require.NoError(t, err)
	assert.Equal(t, created.Identity.ID, ident.ID)

	require.NoError(t, fake.DeleteAccount(ctx, signedIn.IDToken))
	_, err = fake.SignIn(ctx, "alice@example.com", "newpass99")
	assert.Equal(t, CodeInvalidCredentials, CodeOf(err))
}

func TestFakeProviderMFA(t *testing.T) {
	fake := NewFakeProvider()
	fake.Seed("mfa@example.com", "hunter22")
	fake.MFAUsers["mfa@example.com"] = true

	result, err := fake.SignIn(context.Background(), "mfa@example.com", "hunter22")
	require.NoError(t, err)
	assert.True(t, result.MFARequired)
	assert.NotEmpty(t, result.MFAChallenge)
}

func TestFakeProviderResetTracking(t *testing.T) {
	fake := NewFakeProvider()
	require.NoError(t, fake.SendPasswordReset(context.Background(), "Someone@Example.com"))
	assert.Equal(t, []string{"someone@example.com"}, fake.ResetRequests)
}
