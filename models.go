package auth

import (
	"time"

	"github.com/uptrace/bun"
)

// User is an account identity. Users are never hard-deleted by this core.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID             int64   `bun:"id,pk,autoincrement" json:"id"`
	Username       string  `bun:"username,notnull,unique" json:"username"`
	Email          string  `bun:"email,notnull,unique" json:"email"`
	PasswordHash   string  `bun:"password_hash,notnull" json:"-"`
	EmailVerified  bool    `bun:"email_verified,notnull" json:"email_verified"`
	ProfilePicture *string `bun:"profile_picture" json:"profile_picture,omitempty"`
	Description    *string `bun:"description" json:"description,omitempty"`

	// Latest issued reset/confirmation tokens. Stored redundantly so only
	// the most recently issued token is accepted, never to reconstruct
	// claims.
	ResetPasswordToken *string `bun:"reset_password_token" json:"-"`
	ConfirmEmailToken  *string `bun:"confirm_email_token" json:"-"`

	OrganizationID *int64 `bun:"organization_id" json:"organization_id,omitempty"`
	AccessLevelID  int64  `bun:"access_level_id,notnull" json:"access_level_id"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Organization *Organization `bun:"rel:belongs-to,join:organization_id=id" json:"organization,omitempty"`
	AccessLevel  *AccessLevel  `bun:"rel:belongs-to,join:access_level_id=id" json:"access_level,omitempty"`
}

// Organization is a tenant. OwnerID stays nil only for the instant between
// organization insert and owner insert inside the provisioning transaction.
type Organization struct {
	bun.BaseModel `bun:"table:organizations,alias:org"`

	ID                       int64   `bun:"id,pk,autoincrement" json:"id"`
	Name                     string  `bun:"name,notnull" json:"name"`
	Blocked                  bool    `bun:"blocked,notnull" json:"blocked"`
	BillingEmail             string  `bun:"billing_email,notnull,unique" json:"billing_email"`
	BillingEmailVerified     bool    `bun:"billing_email_verified,notnull" json:"billing_email_verified"`
	ConfirmBillingEmailToken *string `bun:"confirm_billing_email_token" json:"-"`
	OwnerID                  *int64  `bun:"owner_id" json:"owner_id,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// AccessLevel is a named permission bundle. Fixed levels are the immutable
// root levels created with each organization and carry the full permission
// set at creation time.
type AccessLevel struct {
	bun.BaseModel `bun:"table:access_levels,alias:lvl"`

	ID          int64    `bun:"id,pk,autoincrement" json:"id"`
	Name        string   `bun:"name,notnull" json:"name"`
	Description string   `bun:"description,notnull" json:"description"`
	IsFixed     bool     `bun:"is_fixed,notnull" json:"is_fixed"`
	Permissions []string `bun:"permissions,notnull" json:"permissions"`

	// nil for global/system levels
	OrganizationID *int64 `bun:"organization_id" json:"organization_id,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Session is one authenticated device or browser. Rows are created on
// sign-in, deleted on sign-out or revocation, and otherwise never updated;
// a refresh is a new session.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`

	// PublicID is safe to display and is how owners revoke a device.
	PublicID int64 `bun:"public_id,pk,autoincrement" json:"public_id"`

	// SessionToken is never logged and never returned after creation.
	SessionToken string `bun:"session_token,notnull,unique" json:"-"`

	IP        string    `bun:"ip,notnull" json:"ip"`
	UserAgent string    `bun:"user_agent,notnull" json:"user_agent"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	UserID int64 `bun:"user_id,notnull" json:"user_id"`
	User   *User `bun:"rel:belongs-to,join:user_id=id" json:"-"`
}
