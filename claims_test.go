package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-tenant-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAudience(t *testing.T) {
	assert.Equal(t, "user:42", auth.FormatAudience(auth.AudienceKindUser, 42))
	assert.Equal(t, "organization:7", auth.FormatAudience(auth.AudienceKindOrganization, 7))
}

func TestParseAudience(t *testing.T) {
	tests := []struct {
		name     string
		aud      string
		wantKind string
		wantID   int64
		wantErr  bool
	}{
		{
			name:     "user audience",
			aud:      "user:42",
			wantKind: "user",
			wantID:   42,
		},
		{
			name:     "organization audience",
			aud:      "organization:7",
			wantKind: "organization",
			wantID:   7,
		},
		{
			name:    "missing id",
			aud:     "user:",
			wantErr: true,
		},
		{
			name:    "missing kind",
			aud:     ":42",
			wantErr: true,
		},
		{
			name:    "no separator",
			aud:     "user",
			wantErr: true,
		},
		{
			name:    "non numeric id",
			aud:     "user:abc",
			wantErr: true,
		},
		{
			name:    "negative id",
			aud:     "user:-1",
			wantErr: true,
		},
		{
			name:    "zero id",
			aud:     "user:0",
			wantErr: true,
		},
		{
			name:    "empty",
			aud:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id, err := auth.ParseAudience(tt.aud)

			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrTokenMalformed)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestClaimsTargetID(t *testing.T) {
	claims := &auth.Claims{Audience: auth.FormatAudience(auth.AudienceKindUser, 42)}

	id, err := claims.TargetID(auth.AudienceKindUser)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	// right shape, wrong kind
	_, err = claims.TargetID(auth.AudienceKindOrganization)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestParseAudienceRoundTrip(t *testing.T) {
	aud := auth.FormatAudience(auth.AudienceKindOrganization, 12345)

	kind, id, err := auth.ParseAudience(aud)
	require.NoError(t, err)
	assert.Equal(t, auth.AudienceKindOrganization, kind)
	assert.Equal(t, int64(12345), id)
}
