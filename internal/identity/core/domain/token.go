package domain

import "time"

// TokenRole discriminates the two bearer kinds the codec signs. The codec
// itself is role-agnostic (spec §4.4); callers embed and check this claim.
type TokenRole string

const (
	RoleAccess  TokenRole = "access"
	RoleRefresh TokenRole = "refresh"
)

// Claims is what the Token Codec signs into and verifies out of a bearer
// string.
type Claims struct {
	Email     string
	Subject   string // user id
	Role      TokenRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// TokenPair is the cache's jwt:<email> value: the one live (access, refresh)
// tuple for a user. A refresh operation atomically replaces it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// VerificationKey identifies the cache's verify:<key> entry. The key itself
// is the cache key; Email is the stored value.
type VerificationKey struct {
	Key   string
	Email string
}
