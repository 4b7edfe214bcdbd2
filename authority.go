package auth

import (
	"context"
	"errors"
	"net/netip"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// SessionDaysDuration is how long a session lives from issuance. Sessions
// are never extended in place, a refresh is a new session.
const SessionDaysDuration = 30

const defaultIssuer = "go-tenant-auth"

// Authority is the credential and session authority: it verifies
// credentials, owns the opaque session lifecycle, mints and validates signed
// claims, and provisions tenants. It owns no long-lived state beyond the
// shared token source handle.
type Authority struct {
	repo            RepositoryManager
	tokens          *TokenService
	rand            *TokenSource
	hasher          PasswordAuthenticator
	permissions     PermissionProvider
	sessionDuration time.Duration
	logger          Logger
	sink            ActivitySink
}

// New returns a new Authority
func New(repo RepositoryManager, cfg Config) *Authority {
	issuer := cfg.GetIssuer()
	if issuer == "" {
		issuer = defaultIssuer
	}

	days := cfg.GetSessionDuration()
	if days <= 0 {
		days = SessionDaysDuration
	}

	logger := defLogger{}

	return &Authority{
		repo:            repo,
		tokens:          NewTokenService([]byte(cfg.GetSigningKey()), issuer, logger),
		rand:            NewTokenSource(),
		hasher:          bcryptAuthenticator{},
		permissions:     DefaultPermissions,
		sessionDuration: time.Duration(days) * 24 * time.Hour,
		logger:          logger,
		sink:            noopActivitySink{},
	}
}

func (a *Authority) WithLogger(logger Logger) *Authority {
	a.logger = logger
	return a
}

// WithTokenSource injects an explicit generator handle, typically a seeded
// one for reproducible tests.
func (a *Authority) WithTokenSource(src *TokenSource) *Authority {
	a.rand = src
	return a
}

func (a *Authority) WithPasswordAuthenticator(hasher PasswordAuthenticator) *Authority {
	a.hasher = hasher
	return a
}

func (a *Authority) WithPermissionProvider(provider PermissionProvider) *Authority {
	a.permissions = provider
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Authority) WithActivitySink(sink ActivitySink) *Authority {
	a.sink = normalizeActivitySink(sink)
	return a
}

// TokenService returns the TokenService instance used by this Authority
func (a *Authority) TokenService() *TokenService {
	return a.tokens
}

// Authenticate finds the account by email and verifies the password.
// It returns ErrIdentityNotFound before any password work happens, which is
// an observable timing side-channel (email enumeration via latency). The
// source system accepts that tradeoff and so do we; do not "fix" it here
// without deciding the dummy-hash cost question first.
func (a *Authority) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := a.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			a.emitEvent(ctx, ActivityEvent{
				EventType: ActivityEventLoginFailure,
				Metadata:  map[string]any{"email": email, "reason": "not_found"},
			})
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during authentication")
	}

	if err := a.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			a.emitEvent(ctx, ActivityEvent{
				EventType: ActivityEventLoginFailure,
				UserID:    user.ID,
				Metadata:  map[string]any{"reason": "invalid_password"},
			})
			return nil, ErrInvalidPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify password")
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID,
	})

	return user, nil
}

// CreateSession generates a token and persists a new session record for the
// user. The returned SessionToken is the only time the plaintext token is
// ever exposed.
func (a *Authority) CreateSession(ctx context.Context, userID int64, clientIP netip.Addr, userAgent string) (*Session, SessionToken, error) {
	token := NewSessionToken(a.rand)

	record := &Session{
		SessionToken: token.DatabaseValue(),
		IP:           clientIP.String(),
		UserAgent:    userAgent,
		ExpiresAt:    time.Now().UTC().Add(a.sessionDuration),
		UserID:       userID,
	}

	created, err := a.repo.Sessions().Create(ctx, record)
	if err != nil {
		return nil, SessionToken{}, err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventSessionCreated,
		UserID:    userID,
		Metadata:  map[string]any{"public_id": created.PublicID},
	})

	return created, token, nil
}

// ResolvedSession is the authorization view loaded on every authenticated
// request. Access level and organization are joined fresh each time, a user
// demoted after session creation is reflected on the very next request.
type ResolvedSession struct {
	Session      *Session
	User         *User
	AccessLevel  *AccessLevel
	Organization *Organization // nil when the user belongs to no organization
}

// ResolveSession returns the session owner with their current access level
// and optional organization, or nil when no non-expired session matches.
func (a *Authority) ResolveSession(ctx context.Context, token SessionToken) (*ResolvedSession, error) {
	record, err := a.repo.Sessions().GetActiveByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	if record.User == nil || record.User.AccessLevel == nil {
		return nil, goerrors.New("session row has no user or access level", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"public_id": record.PublicID})
	}

	return &ResolvedSession{
		Session:      record,
		User:         record.User,
		AccessLevel:  record.User.AccessLevel,
		Organization: record.User.Organization,
	}, nil
}

// ActiveSessions lists the user's non-expired sessions. Expired rows are
// filtered at query time, not deleted; reaping is an external concern.
func (a *Authority) ActiveSessions(ctx context.Context, userID int64) ([]Session, error) {
	return a.repo.Sessions().ListActiveByUser(ctx, userID)
}

// RevokeSessionByToken deletes the session matching the token. Deleting an
// already absent session is not an error.
func (a *Authority) RevokeSessionByToken(ctx context.Context, token SessionToken) error {
	if err := a.repo.Sessions().DeleteByToken(ctx, token); err != nil {
		return err
	}

	a.emitEvent(ctx, ActivityEvent{EventType: ActivityEventSessionRevoked})
	return nil
}

// RevokeSessionByPublicID deletes a specific device session by its
// displayable id. Idempotent like RevokeSessionByToken.
func (a *Authority) RevokeSessionByPublicID(ctx context.Context, publicID int64) error {
	if err := a.repo.Sessions().DeleteByPublicID(ctx, publicID); err != nil {
		return err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventSessionRevoked,
		Metadata:  map[string]any{"public_id": publicID},
	})
	return nil
}

// IssueShortLivedToken mints a 20 second claims token for single-action
// confirmation flows. No server-side state is written.
func (a *Authority) IssueShortLivedToken(userID int64) (string, error) {
	return a.tokens.Mint(PurposeShortLived, FormatAudience(AudienceKindUser, userID), ShortLivedTokenDuration)
}

// IssuePasswordResetToken mints a reset token and stores it on the user row,
// implicitly invalidating any previously issued reset token.
func (a *Authority) IssuePasswordResetToken(ctx context.Context, userID int64) (string, error) {
	token, err := a.tokens.Mint(PurposePasswordReset, FormatAudience(AudienceKindUser, userID), PasswordResetTokenDuration)
	if err != nil {
		return "", err
	}

	if err := a.repo.Users().SetResetPasswordToken(ctx, userID, token); err != nil {
		return "", err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		UserID:    userID,
	})

	return token, nil
}

// IssueEmailConfirmationToken mints a confirmation token and stores it on
// the user row.
func (a *Authority) IssueEmailConfirmationToken(ctx context.Context, userID int64) (string, error) {
	token, err := a.tokens.Mint(PurposeEmailConfirmation, FormatAudience(AudienceKindUser, userID), EmailConfirmationTokenDuration)
	if err != nil {
		return "", err
	}

	if err := a.repo.Users().SetConfirmEmailToken(ctx, userID, token); err != nil {
		return "", err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventEmailConfirmRequested,
		UserID:    userID,
	})

	return token, nil
}

// IssueOrgEmailConfirmationToken mints a confirmation token for an
// organization's billing email and stores it on the organization row.
func (a *Authority) IssueOrgEmailConfirmationToken(ctx context.Context, orgID int64) (string, error) {
	token, err := a.tokens.Mint(PurposeEmailConfirmation, FormatAudience(AudienceKindOrganization, orgID), EmailConfirmationTokenDuration)
	if err != nil {
		return "", err
	}

	if err := a.repo.Organizations().SetConfirmBillingEmailToken(ctx, orgID, token); err != nil {
		return "", err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType:      ActivityEventEmailConfirmRequested,
		OrganizationID: orgID,
	})

	return token, nil
}

// ValidateToken decodes and validates a signed claims token without any
// staleness check. Reset and confirmation flows must go through the
// purpose-specific validators below instead.
func (a *Authority) ValidateToken(raw string) (*Claims, error) {
	return a.tokens.Validate(raw)
}

// ValidatePasswordResetToken checks signature, expiry, and audience shape,
// then cross-checks the raw token against the value currently stored on the
// user row. A validly signed token that is not the most recently issued one
// yields ErrStaleToken.
func (a *Authority) ValidatePasswordResetToken(ctx context.Context, raw string) (*User, error) {
	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	userID, err := claims.TargetID(AudienceKindUser)
	if err != nil {
		return nil, err
	}

	user, err := a.repo.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.ResetPasswordToken == nil || *user.ResetPasswordToken != raw {
		return nil, ErrStaleToken
	}

	return user, nil
}

// ValidateUserEmailConfirmationToken is the confirmation counterpart of
// ValidatePasswordResetToken.
func (a *Authority) ValidateUserEmailConfirmationToken(ctx context.Context, raw string) (*User, error) {
	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	userID, err := claims.TargetID(AudienceKindUser)
	if err != nil {
		return nil, err
	}

	user, err := a.repo.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.ConfirmEmailToken == nil || *user.ConfirmEmailToken != raw {
		return nil, ErrStaleToken
	}

	return user, nil
}

// ValidateOrgEmailConfirmationToken validates a billing email confirmation
// token against the organization row.
func (a *Authority) ValidateOrgEmailConfirmationToken(ctx context.Context, raw string) (*Organization, error) {
	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	orgID, err := claims.TargetID(AudienceKindOrganization)
	if err != nil {
		return nil, err
	}

	org, err := a.repo.Organizations().GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if org.ConfirmBillingEmailToken == nil || *org.ConfirmBillingEmailToken != raw {
		return nil, ErrStaleToken
	}

	return org, nil
}

// CompletePasswordReset validates the reset token and swaps the password in
// one step, clearing the stored token so it cannot be replayed.
func (a *Authority) CompletePasswordReset(ctx context.Context, raw, newPassword string) (*User, error) {
	user, err := a.ValidatePasswordResetToken(ctx, raw)
	if err != nil {
		return nil, err
	}

	hash, err := a.hasher.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	if err := a.repo.Users().ResetPassword(ctx, user.ID, hash); err != nil {
		return nil, err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetCompleted,
		UserID:    user.ID,
	})

	return user, nil
}

// ConfirmUserEmail validates the confirmation token and flips the user's
// verified flag.
func (a *Authority) ConfirmUserEmail(ctx context.Context, raw string) (*User, error) {
	user, err := a.ValidateUserEmailConfirmationToken(ctx, raw)
	if err != nil {
		return nil, err
	}

	if err := a.repo.Users().ConfirmEmail(ctx, user.ID); err != nil {
		return nil, err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventEmailConfirmed,
		UserID:    user.ID,
	})

	return user, nil
}

// ConfirmOrgEmail validates the confirmation token and flips the
// organization's billing email verified flag.
func (a *Authority) ConfirmOrgEmail(ctx context.Context, raw string) (*Organization, error) {
	org, err := a.ValidateOrgEmailConfirmationToken(ctx, raw)
	if err != nil {
		return nil, err
	}

	if err := a.repo.Organizations().ConfirmBillingEmail(ctx, org.ID); err != nil {
		return nil, err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType:      ActivityEventEmailConfirmed,
		OrganizationID: org.ID,
	})

	return org, nil
}

// CheckEmailInUse reports whether the email is taken by a user account or an
// organization's billing address.
func (a *Authority) CheckEmailInUse(ctx context.Context, email string) (bool, error) {
	inUse, err := a.repo.Organizations().ExistsByBillingEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if inUse {
		return true, nil
	}

	return a.repo.Users().ExistsByEmail(ctx, email)
}

// UserIDByUsername resolves a username to its id, ErrIdentityNotFound when
// no account matches.
func (a *Authority) UserIDByUsername(ctx context.Context, username string) (int64, error) {
	return a.repo.Users().GetIDByUsername(ctx, username)
}

func (a *Authority) emitEvent(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := a.sink.Record(ctx, event); err != nil {
		a.logger.Warn("activity sink record error: %v event: %s", err, print.MaybePrettyJSON(event))
	}
}
