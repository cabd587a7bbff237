package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wrenhollow/aegis/internal/identity/core/domain"
)

// claims is the wire shape signed into every bearer token. Role lets
// callers distinguish access from refresh without the codec knowing about
// either (spec §4.4).
type claims struct {
	Email string           `json:"email"`
	Role  domain.TokenRole `json:"role"`
	jwt.RegisteredClaims
}

// JWTCodec implements ports.TokenCodec over a single shared HMAC secret
// (spec §6 enumerates only JWT_SECRET, not an RSA keypair).
type JWTCodec struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	issuer        string
}

func NewJWTCodec(secret string, accessExpiry, refreshExpiry time.Duration) *JWTCodec {
	return &JWTCodec{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		issuer:        "aegis-identity",
	}
}

func (j *JWTCodec) Sign(c domain.Claims) (string, error) {
	expiry := j.accessExpiry
	if c.Role == domain.RoleRefresh {
		expiry = j.refreshExpiry
	}
	// A random jti keeps every signed token distinct, even two issued for
	// the same user within one second, so a replaced pair never matches
	// the cached one byte for byte.
	jti := uuid.NewString()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: c.Email,
		Role:  c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   c.Subject,
			ID:        jti,
		},
	})

	return token.SignedString(j.secret)
}

// Verify parses and validates the token, translating jwt/v5's failure
// modes into the three distinct codec error kinds spec §4.4 requires.
func (j *JWTCodec) Verify(tokenString string) (*domain.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, domain.ErrTokenSignatureInvalid
		default:
			return nil, domain.ErrTokenMalformed
		}
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrTokenMalformed
	}

	return &domain.Claims{
		Email:     c.Email,
		Subject:   c.Subject,
		Role:      c.Role,
		ExpiresAt: c.ExpiresAt.Time,
		IssuedAt:  c.IssuedAt.Time,
	}, nil
}
