package auth_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	auth "github.com/goliatone/go-tenant-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClientIP = netip.MustParseAddr("203.0.113.9")

func TestAuthenticate(t *testing.T) {
	authority, _, _ := setupAuthority(t)
	ctx := context.Background()

	user := provisionTestTenant(t, authority, "alice", "alice@example.com")

	t.Run("valid credentials", func(t *testing.T) {
		got, err := authority.Authenticate(ctx, "alice@example.com", "super-secret")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := authority.Authenticate(ctx, "alice@example.com", "nope")
		assert.ErrorIs(t, err, auth.ErrInvalidPassword)
		assert.NotErrorIs(t, err, auth.ErrIdentityNotFound)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := authority.Authenticate(ctx, "nobody@example.com", "whatever")
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
		assert.NotErrorIs(t, err, auth.ErrInvalidPassword)
	})
}

func TestSessionLifecycle(t *testing.T) {
	authority, _, _ := setupAuthority(t)
	ctx := context.Background()

	user := provisionTestTenant(t, authority, "alice", "alice@example.com")

	session, token, err := authority.CreateSession(ctx, user.ID, testClientIP, "test-agent/1.0")
	require.NoError(t, err)
	require.NotZero(t, session.PublicID)
	assert.Equal(t, token.DatabaseValue(), session.SessionToken)
	assert.True(t, session.ExpiresAt.After(time.Now().Add(29*24*time.Hour)))

	// the stored value round-trips through resolve
	resolved, err := authority.ResolveSession(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, user.ID, resolved.User.ID)
	assert.True(t, resolved.AccessLevel.IsFixed)
	require.NotNil(t, resolved.Organization)
	require.NotNil(t, resolved.Organization.OwnerID)
	assert.Equal(t, user.ID, *resolved.Organization.OwnerID)

	_, second, err := authority.CreateSession(ctx, user.ID, testClientIP, "test-agent/2.0")
	require.NoError(t, err)
	assert.NotEqual(t, token, second)

	active, err := authority.ActiveSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	// revoke one device by its public id
	require.NoError(t, authority.RevokeSessionByPublicID(ctx, session.PublicID))

	active, err = authority.ActiveSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	resolved, err = authority.ResolveSession(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	// sign out with the remaining token, twice: deleting zero rows is fine
	require.NoError(t, authority.RevokeSessionByToken(ctx, second))
	require.NoError(t, authority.RevokeSessionByToken(ctx, second))

	active, err = authority.ActiveSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestResolveSessionUnknownToken(t *testing.T) {
	authority, _, _ := setupAuthority(t)

	token := auth.NewSessionToken(auth.NewTokenSource())

	resolved, err := authority.ResolveSession(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestExpiredSessionsAreInvisible(t *testing.T) {
	authority, repo, _ := setupAuthority(t)
	ctx := context.Background()

	user := provisionTestTenant(t, authority, "alice", "alice@example.com")

	token := auth.NewSessionToken(auth.NewTokenSource())
	_, err := repo.Sessions().Create(ctx, &auth.Session{
		SessionToken: token.DatabaseValue(),
		IP:           testClientIP.String(),
		UserAgent:    "test-agent/1.0",
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
		UserID:       user.ID,
	})
	require.NoError(t, err)

	// the row exists but is filtered out everywhere
	active, err := authority.ActiveSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	resolved, err := authority.ResolveSession(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	// an external reaper can still delete it
	n, err := repo.Sessions().DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestResolveSessionReflectsCurrentState(t *testing.T) {
	authority, _, db := setupAuthority(t)
	ctx := context.Background()

	user := provisionTestTenant(t, authority, "alice", "alice@example.com")

	_, token, err := authority.CreateSession(ctx, user.ID, testClientIP, "test-agent/1.0")
	require.NoError(t, err)

	// detach the user from the organization after the session was created
	_, err = db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("organization_id = NULL").
		Where("id = ?", user.ID).
		Exec(ctx)
	require.NoError(t, err)

	// authorization state is joined fresh on every resolve, never cached
	resolved, err := authority.ResolveSession(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Nil(t, resolved.Organization)
	assert.Equal(t, user.ID, resolved.User.ID)
}

func TestPasswordResetFlow(t *testing.T) {
	authority, _, _ := setupAuthority(t)
	ctx := context.Background()

	user := provisionTestTenant(t, authority, "alice", "alice@example.com")

	first, err := authority.IssuePasswordResetToken(ctx, user.ID)
	require.NoError(t, err)

	// issuing a second token supersedes the first
	second, err := authority.IssuePasswordResetToken(ctx, user.ID)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = authority.ValidatePasswordResetToken(ctx, first)
	assert.ErrorIs(t, err, auth.ErrStaleToken)

	got, err := authority.ValidatePasswordResetToken(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// completing the reset swaps the password and burns the token
	_, err = authority.CompletePasswordReset(ctx, second, "brand-new-password")
	require.NoError(t, err)

	_, err = authority.Authenticate(ctx, "alice@example.com", "brand-new-password")
	require.NoError(t, err)

	_, err = authority.Authenticate(ctx, "alice@example.com", "super-secret")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)

	_, err = authority.ValidatePasswordResetToken(ctx, second)
	assert.ErrorIs(t, err, auth.ErrStaleToken)
}

func TestEmailConfirmationFlow(t *testing.T) {
	authority, repo, _ := setupAuthority(t)
	ctx := context.Background()

	user := provisionTestTenant(t, authority, "alice", "alice@example.com")
	require.False(t, user.EmailVerified)

	raw, err := authority.IssueEmailConfirmationToken(ctx, user.ID)
	require.NoError(t, err)

	confirmed, err := authority.ConfirmUserEmail(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, user.ID, confirmed.ID)

	fresh, err := repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, fresh.EmailVerified)
	assert.Nil(t, fresh.ConfirmEmailToken)

	// the burned token no longer matches the row
	_, err = authority.ConfirmUserEmail(ctx, raw)
	assert.ErrorIs(t, err, auth.ErrStaleToken)
}

func TestOrgEmailConfirmationFlow(t *testing.T) {
	authority, repo, _ := setupAuthority(t)
	ctx := context.Background()

	user := provisionTestTenant(t, authority, "alice", "alice@example.com")
	require.NotNil(t, user.OrganizationID)
	orgID := *user.OrganizationID

	first, err := authority.IssueOrgEmailConfirmationToken(ctx, orgID)
	require.NoError(t, err)
	second, err := authority.IssueOrgEmailConfirmationToken(ctx, orgID)
	require.NoError(t, err)

	_, err = authority.ValidateOrgEmailConfirmationToken(ctx, first)
	assert.ErrorIs(t, err, auth.ErrStaleToken)

	org, err := authority.ConfirmOrgEmail(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, orgID, org.ID)

	fresh, err := repo.Organizations().GetByID(ctx, orgID)
	require.NoError(t, err)
	assert.True(t, fresh.BillingEmailVerified)
	assert.Nil(t, fresh.ConfirmBillingEmailToken)
}

func TestTokenKindsDoNotCross(t *testing.T) {
	authority, _, _ := setupAuthority(t)
	ctx := context.Background()

	user := provisionTestTenant(t, authority, "alice", "alice@example.com")
	require.NotNil(t, user.OrganizationID)

	// an organization token presented to a user flow fails on audience kind
	orgToken, err := authority.IssueOrgEmailConfirmationToken(ctx, *user.OrganizationID)
	require.NoError(t, err)

	_, err = authority.ValidateUserEmailConfirmationToken(ctx, orgToken)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)

	// an opaque session token is never a valid claims token
	_, sessionToken, err := authority.CreateSession(ctx, user.ID, testClientIP, "test-agent/1.0")
	require.NoError(t, err)

	_, err = authority.ValidateToken(sessionToken.String())
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestShortLivedToken(t *testing.T) {
	authority, _, _ := setupAuthority(t)

	raw, err := authority.IssueShortLivedToken(42)
	require.NoError(t, err)

	claims, err := authority.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, auth.PurposeShortLived, claims.Subject)

	id, err := claims.TargetID(auth.AudienceKindUser)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.WithinDuration(t, time.Now().Add(auth.ShortLivedTokenDuration), claims.Expires(), 5*time.Second)
}

func TestCheckEmailInUse(t *testing.T) {
	authority, _, db := setupAuthority(t)
	ctx := context.Background()

	provisionTestTenant(t, authority, "alice", "alice@example.com")

	inUse, err := authority.CheckEmailInUse(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = authority.CheckEmailInUse(ctx, "free@example.com")
	require.NoError(t, err)
	assert.False(t, inUse)

	// billing-only addresses count too
	orgOnly := &auth.Organization{
		Name:         "billing-only",
		BillingEmail: "billing@example.com",
	}
	_, err = db.NewInsert().Model(orgOnly).Exec(ctx)
	require.NoError(t, err)

	inUse, err = authority.CheckEmailInUse(ctx, "billing@example.com")
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestUserIDByUsername(t *testing.T) {
	authority, _, _ := setupAuthority(t)
	ctx := context.Background()

	user := provisionTestTenant(t, authority, "alice", "alice@example.com")

	id, err := authority.UserIDByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = authority.UserIDByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
}

func TestActivityEvents(t *testing.T) {
	authority, _, _ := setupAuthority(t)
	sink := &capturingSink{}
	authority.WithActivitySink(sink)
	ctx := context.Background()

	provisionTestTenant(t, authority, "alice", "alice@example.com")

	_, err := authority.Authenticate(ctx, "alice@example.com", "super-secret")
	require.NoError(t, err)

	_, err = authority.Authenticate(ctx, "alice@example.com", "wrong")
	require.Error(t, err)

	_, err = authority.Authenticate(ctx, "nobody@example.com", "wrong")
	require.Error(t, err)

	types := sink.eventTypes()
	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventTenantProvisioned,
		auth.ActivityEventLoginSuccess,
		auth.ActivityEventLoginFailure,
		auth.ActivityEventLoginFailure,
	}, types)
}
