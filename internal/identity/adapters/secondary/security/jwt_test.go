package security

import (
	"testing"
	"time"

	"github.com/wrenhollow/aegis/internal/identity/core/domain"
)

func TestJWTSignVerifyRoundTrip(t *testing.T) {
	codec := NewJWTCodec("test-secret", time.Hour, 24*time.Hour)

	token, err := codec.Sign(domain.Claims{Email: "jane@example.com", Subject: "user-1", Role: domain.RoleAccess})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Email != "jane@example.com" || claims.Role != domain.RoleAccess {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestJWTVerifyExpired(t *testing.T) {
	codec := NewJWTCodec("test-secret", -time.Minute, -time.Minute)

	token, err := codec.Sign(domain.Claims{Email: "jane@example.com", Subject: "user-1", Role: domain.RoleAccess})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := codec.Verify(token); err != domain.ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTVerifyWrongSecret(t *testing.T) {
	signer := NewJWTCodec("secret-a", time.Hour, 24*time.Hour)
	verifier := NewJWTCodec("secret-b", time.Hour, 24*time.Hour)

	token, err := signer.Sign(domain.Claims{Email: "jane@example.com", Subject: "user-1", Role: domain.RoleAccess})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := verifier.Verify(token); err != domain.ErrTokenSignatureInvalid {
		t.Errorf("expected ErrTokenSignatureInvalid, got %v", err)
	}
}

func TestJWTVerifyMalformed(t *testing.T) {
	codec := NewJWTCodec("test-secret", time.Hour, 24*time.Hour)
	if _, err := codec.Verify("not-a-jwt"); err != domain.ErrTokenMalformed {
		t.Errorf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestJWTAccessAndRefreshDistinctRole(t *testing.T) {
	codec := NewJWTCodec("test-secret", time.Hour, 24*time.Hour)

	access, _ := codec.Sign(domain.Claims{Email: "jane@example.com", Subject: "user-1", Role: domain.RoleAccess})
	refresh, _ := codec.Sign(domain.Claims{Email: "jane@example.com", Subject: "user-1", Role: domain.RoleRefresh})

	accessClaims, err := codec.Verify(access)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	refreshClaims, err := codec.Verify(refresh)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}

	if accessClaims.Role != domain.RoleAccess {
		t.Error("expected access role")
	}
	if refreshClaims.Role != domain.RoleRefresh {
		t.Error("expected refresh role")
	}
}
