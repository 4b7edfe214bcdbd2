package auth

import (
	"encoding/hex"
)

// SessionTokenByteLength is the entropy width of an opaque session token.
// 128 bits keeps direct-equality storage lookups safe against forgery even
// if the store leaks without the application.
const SessionTokenByteLength = 16

// SessionToken is the opaque, stateful session credential. It carries no
// claims and is matched in storage by direct equality. It is a distinct type
// from signed claims tokens on purpose, the two schemes share no
// representation.
type SessionToken [SessionTokenByteLength]byte

// NewSessionToken draws a fresh token from the shared source.
func NewSessionToken(src *TokenSource) SessionToken {
	var t SessionToken
	copy(t[:], src.Bytes(SessionTokenByteLength))
	return t
}

// ParseSessionToken converts a client-supplied value back into a token.
// Anything that is not exactly 32 lowercase hex characters is rejected
// before we ever touch storage.
func ParseSessionToken(raw string) (SessionToken, error) {
	var t SessionToken
	if len(raw) != hex.EncodedLen(SessionTokenByteLength) {
		return t, ErrSessionTokenInvalid
	}
	if _, err := hex.Decode(t[:], []byte(raw)); err != nil {
		return t, ErrSessionTokenInvalid
	}
	return t, nil
}

// String is the external representation handed to the client.
func (t SessionToken) String() string {
	return hex.EncodeToString(t[:])
}

// DatabaseValue is the value stored and compared in session queries. It is
// the same deterministic transform as String so a client-supplied token can
// be matched by equality without per-lookup hashing.
func (t SessionToken) DatabaseValue() string {
	return hex.EncodeToString(t[:])
}
