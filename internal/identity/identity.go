// Package identity resolves who is calling: a registered user (via a session
// token) or an anonymous device (via the x-anonymous-id header).
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Role is a registered user's role.
type Role string

const (
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Kind tags an Identity.
type Kind int

const (
	KindNone Kind = iota
	KindUser
	KindAnonymous
)

// Identity is either a registered user or an anonymous device, never both.
// The zero value is the absent identity.
type Identity struct {
	kind Kind
	id   string
	role Role
}

// UserIdentity returns a registered-user identity.
func UserIdentity(userID string, role Role) Identity {
	if userID == "" {
		return Identity{}
	}
	if role == "" {
		role = RoleUser
	}
	return Identity{kind: KindUser, id: userID, role: role}
}

// AnonymousIdentity returns an anonymous identity for a client device id.
func AnonymousIdentity(deviceID string) Identity {
	if deviceID == "" {
		return Identity{}
	}
	return Identity{kind: KindAnonymous, id: deviceID}
}

func (i Identity) Kind() Kind        { return i.kind }
func (i Identity) IsZero() bool      { return i.kind == KindNone }
func (i Identity) IsUser() bool      { return i.kind == KindUser }
func (i Identity) IsAnonymous() bool { return i.kind == KindAnonymous }
func (i Identity) Role() Role        { return i.role }

// UserID returns the user id, or "" for non-user identities.
func (i Identity) UserID() string {
	if i.kind != KindUser {
		return ""
	}
	return i.id
}

// AnonymousID returns the device id, or "" for non-anonymous identities.
func (i Identity) AnonymousID() string {
	if i.kind != KindAnonymous {
		return ""
	}
	return i.id
}

// String renders the identity as "user:<id>" or "anonymous:<id>".
func (i Identity) String() string {
	switch i.kind {
	case KindUser:
		return "user:" + i.id
	case KindAnonymous:
		return "anonymous:" + i.id
	default:
		return ""
	}
}

// HasRole reports whether the identity is a user holding one of roles.
func (i Identity) HasRole(roles ...Role) bool {
	if i.kind != KindUser {
		return false
	}
	for _, r := range roles {
		if i.role == r {
			return true
		}
	}
	return false
}

// ErrNotFound is returned by stores when a session or user does not exist.
var ErrNotFound = errors.New("identity: not found")

// Session maps a hashed session token to a user.
type Session struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
}

// User is the part of an account the resolver needs.
type User struct {
	ID    string
	Email string
	Role  Role
}

// HashToken computes the SHA-256 hex digest of a session token. Only hashes
// are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
