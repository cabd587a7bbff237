package ports

import (
	"context"
	"time"

	"github.com/wrenhollow/aegis/internal/identity/core/domain"
)

// UserRepository is the Credential Store contract (spec §4.1). Insert fails
// with domain.ErrEmailAlreadyExists when the email is already taken;
// uniqueness is enforced by the store itself, not the caller.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Insert(ctx context.Context, user *domain.User) error
	UpdateVerified(ctx context.Context, userID string, verified bool) error
}

// TokenCache is the Token Cache contract (spec §4.2): a per-key TTL map,
// linearizable per key, acting as the authoritative revocation oracle.
type TokenCache interface {
	PutTokenPair(ctx context.Context, email string, pair domain.TokenPair, ttl time.Duration) error
	GetTokenPair(ctx context.Context, email string) (*domain.TokenPair, error)
	DeleteTokenPair(ctx context.Context, email string) error

	PutVerificationKey(ctx context.Context, key, email string, ttl time.Duration) error
	GetVerificationKey(ctx context.Context, key string) (string, error)
	DeleteVerificationKey(ctx context.Context, key string) error
}

// PasswordHasher is the Password Hasher contract (spec §4.3).
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenCodec is the Token Codec contract (spec §4.4). Verify returns a
// *domain.Claims on success or one of the three distinct codec error kinds
// otherwise.
type TokenCodec interface {
	Sign(claims domain.Claims) (string, error)
	Verify(token string) (*domain.Claims, error)
}

// MailDispatcher is the Mail Dispatcher contract (spec §4/§2): fire-and-
// forget delivery of a verification link keyed by an unguessable token.
type MailDispatcher interface {
	SendVerificationEmail(ctx context.Context, toEmail, verificationKey string) error
}

// EventPublisher is an optional async side-channel for other services to
// observe identity events; not part of the synchronous RPC surface in §6.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, userID, email string) error
}
