package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	auth "github.com/goliatone/go-tenant-auth"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var testSchema = []string{
	`CREATE TABLE organizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		blocked INTEGER NOT NULL DEFAULT 0,
		billing_email TEXT NOT NULL UNIQUE,
		billing_email_verified INTEGER NOT NULL DEFAULT 0,
		confirm_billing_email_token TEXT,
		owner_id INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE access_levels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		is_fixed INTEGER NOT NULL DEFAULT 0,
		permissions TEXT NOT NULL DEFAULT '[]',
		organization_id INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		email_verified INTEGER NOT NULL DEFAULT 0,
		profile_picture TEXT,
		description TEXT,
		reset_password_token TEXT,
		confirm_email_token TEXT,
		organization_id INTEGER,
		access_level_id INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE sessions (
		public_id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_token TEXT NOT NULL UNIQUE,
		ip TEXT NOT NULL,
		user_agent TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		user_id INTEGER NOT NULL
	);`,
}

type testConfig struct {
	signingKey  string
	issuer      string
	sessionDays int
}

func newTestConfig() testConfig {
	return testConfig{
		signingKey: "test-signing-key",
		issuer:     "test-issuer",
	}
}

func (c testConfig) GetSigningKey() string {
	return c.signingKey
}

func (c testConfig) GetIssuer() string {
	return c.issuer
}

func (c testConfig) GetSessionDuration() int {
	return c.sessionDays
}

// plainHasher keeps the integration tests fast; the real bcrypt path is
// covered in bcrypt_test.go.
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", auth.ErrNoEmptyString
	}
	return "plain:" + password, nil
}

func (plainHasher) ComparePasswordAndHash(password, hash string) error {
	if hash != "plain:"+password {
		return auth.ErrInvalidPassword
	}
	return nil
}

// capturingSink records activity events for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, event auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingSink) eventTypes() []auth.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]auth.ActivityEventType, 0, len(c.events))
	for _, event := range c.events {
		types = append(types, event.EventType)
	}
	return types
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	for _, ddl := range testSchema {
		_, err = db.Exec(ddl)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func setupAuthority(t *testing.T) (*auth.Authority, auth.RepositoryManager, *bun.DB) {
	t.Helper()

	db := setupTestDB(t)
	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	authority := auth.New(repo, newTestConfig()).
		WithTokenSource(auth.NewSeededTokenSource([32]byte{7})).
		WithPasswordAuthenticator(plainHasher{})

	return authority, repo, db
}

func assertTenantRowCounts(t *testing.T, db *bun.DB, want int) {
	t.Helper()
	ctx := context.Background()

	for _, model := range []any{(*auth.Organization)(nil), (*auth.AccessLevel)(nil), (*auth.User)(nil)} {
		count, err := db.NewSelect().Model(model).Count(ctx)
		require.NoError(t, err)
		require.Equal(t, want, count, "unexpected row count for %T", model)
	}
}

func provisionTestTenant(t *testing.T, authority *auth.Authority, username, email string) *auth.User {
	t.Helper()

	user, err := authority.ProvisionTenant(context.Background(), auth.ProvisionTenantInput{
		Username: username,
		Email:    email,
		Password: "super-secret",
	})
	require.NoError(t, err)
	require.NotNil(t, user)

	return user
}
