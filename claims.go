package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose strings carried in the sub claim. They are advisory labels for
// humans and logs, the security checks are the signature, the audience, and
// the expiry.
const (
	PurposeShortLived        = "user short lived token"
	PurposePasswordReset     = "restore password token"
	PurposeEmailConfirmation = "confirm email address token"
)

// Expirations per purpose.
const (
	ShortLivedTokenDuration        = 20 * time.Second
	PasswordResetTokenDuration     = 15 * time.Minute
	EmailConfirmationTokenDuration = 8 * time.Hour
)

// Audience kinds encoded in the aud claim as "<kind>:<id>".
const (
	AudienceKindUser         = "user"
	AudienceKindOrganization = "organization"
)

// Claims is the signed, stateless capability token payload. It is never
// persisted as a row; reset and confirmation flows redundantly store the
// encoded token on the target row only to enforce one-active-token-at-a-time.
type Claims struct {
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	Audience  string `json:"aud"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	ID        string `json:"jti,omitempty"`
}

var _ jwt.Claims = (*Claims)(nil)

func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	if c.IssuedAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c *Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

func (c *Claims) GetIssuer() (string, error) {
	return c.Issuer, nil
}

func (c *Claims) GetSubject() (string, error) {
	return c.Subject, nil
}

func (c *Claims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// Expires returns the expiration instant
func (c *Claims) Expires() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// TargetID parses the audience and asserts its kind in one step.
func (c *Claims) TargetID(kind string) (int64, error) {
	k, id, err := ParseAudience(c.Audience)
	if err != nil {
		return 0, err
	}
	if k != kind {
		return 0, ErrTokenMalformed
	}
	return id, nil
}

// FormatAudience encodes a target entity as "<kind>:<id>".
func FormatAudience(kind string, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

// ParseAudience splits an aud value back into its kind and integer id. Any
// other shape is malformed.
func ParseAudience(aud string) (string, int64, error) {
	kind, rest, found := strings.Cut(aud, ":")
	if !found || kind == "" {
		return "", 0, ErrTokenMalformed
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, ErrTokenMalformed
	}

	return kind, id, nil
}
