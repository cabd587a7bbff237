// Package services implements the identity hexagon's primary port: the
// five broker-reachable operations orchestrating the Credential Store,
// Password Hasher, Token Codec, Token Cache, and Mail Dispatcher.
package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wrenhollow/aegis/internal/identity/core/domain"
	"github.com/wrenhollow/aegis/internal/identity/core/ports"
)

type IdentityService struct {
	repo   ports.UserRepository
	cache  ports.TokenCache
	hasher ports.PasswordHasher
	codec  ports.TokenCodec
	mailer ports.MailDispatcher
	events ports.EventPublisher

	refreshTTL time.Duration
	verifyTTL  time.Duration
}

func NewIdentityService(
	repo ports.UserRepository,
	cache ports.TokenCache,
	hasher ports.PasswordHasher,
	codec ports.TokenCodec,
	mailer ports.MailDispatcher,
	events ports.EventPublisher,
	refreshTTL, verifyTTL time.Duration,
) *IdentityService {
	return &IdentityService{
		repo:       repo,
		cache:      cache,
		hasher:     hasher,
		codec:      codec,
		mailer:     mailer,
		events:     events,
		refreshTTL: refreshTTL,
		verifyTTL:  verifyTTL,
	}
}

// --- sign-up ---

func (s *IdentityService) SignUp(ctx context.Context, cmd ports.SignUpCmd) (*ports.StatusResponse, error) {
	if err := domain.ValidatePassword(cmd.Password); err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindByEmail(ctx, cmd.Email); err == nil && existing != nil {
		return nil, domain.ErrEmailAlreadyExists
	}

	hash, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := domain.NewUser(cmd.Email, cmd.FirstName, cmd.LastName, hash)
	if err != nil {
		return nil, err
	}

	key, err := generateVerificationKey()
	if err != nil {
		return nil, fmt.Errorf("generate verification key: %w", err)
	}

	// Ordering matters: cache write before insert before mail. A crash
	// between the first two leaves only an orphaned, TTL-cleaned cache
	// entry; mail is last so a clicked link always finds a user record.
	if err := s.cache.PutVerificationKey(ctx, key, user.Email, s.verifyTTL); err != nil {
		return nil, fmt.Errorf("cache verification key: %w", err)
	}

	if err := s.repo.Insert(ctx, user); err != nil {
		return nil, err
	}

	go func() {
		if err := s.mailer.SendVerificationEmail(context.WithoutCancel(ctx), user.Email, key); err != nil {
			slog.Error("verification mail dispatch failed", "email", user.Email, "error", err)
		}
	}()

	if s.events != nil {
		_ = s.events.PublishUserRegistered(ctx, user.ID, user.Email)
	}

	return &ports.StatusResponse{Status: "success", Message: "registered; verify via email"}, nil
}

// --- verify-user ---

func (s *IdentityService) VerifyUser(ctx context.Context, key string) (*ports.StatusResponse, error) {
	email, err := s.cache.GetVerificationKey(ctx, key)
	if err != nil || email == "" {
		return nil, domain.ErrInvalidKey
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	if user.IsVerified {
		// Idempotent per SPEC_FULL.md §C.2: a repeat click while the key
		// hasn't been evicted yet is a no-op success, not an error.
		return &ports.StatusResponse{Status: "success", Message: "already verified"}, nil
	}

	// The key stays cached until its TTL evicts it, so a repeat click
	// within that window reaches the already-verified branch above.
	if err := s.repo.UpdateVerified(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("update verified: %w", err)
	}

	return &ports.StatusResponse{Status: "success", Message: "User has been verified"}, nil
}

// --- sign-in ---

func (s *IdentityService) SignIn(ctx context.Context, cmd ports.SignInCmd) (*ports.TokenResponse, error) {
	user, err := s.repo.FindByEmail(ctx, cmd.Email)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	if !s.hasher.Verify(cmd.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	// Verification status does not gate sign-in (spec §4.5 note, §C.3).
	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	if err := s.cache.PutTokenPair(ctx, user.Email, *pair, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("cache token pair: %w", err)
	}

	return &ports.TokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// --- refresh-token ---

func (s *IdentityService) RefreshToken(ctx context.Context, refreshToken string) (*ports.TokenResponse, *ports.ValidationResult, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil, &ports.ValidationResult{IsValid: false, Message: tokenErrorMessage(err)}, nil
	}

	cached, err := s.cache.GetTokenPair(ctx, claims.Email)
	if err != nil || cached == nil {
		return nil, &ports.ValidationResult{IsValid: false, Message: tokenErrorMessage(domain.ErrNotRefreshToken)}, nil
	}

	if claims.Role != domain.RoleRefresh || !constantTimeEqual(cached.RefreshToken, refreshToken) {
		return nil, &ports.ValidationResult{IsValid: false, Message: tokenErrorMessage(domain.ErrNotRefreshToken)}, nil
	}

	if err := s.cache.DeleteTokenPair(ctx, claims.Email); err != nil {
		return nil, nil, fmt.Errorf("delete token pair: %w", err)
	}

	user, err := s.repo.FindByEmail(ctx, claims.Email)
	if err != nil {
		return nil, nil, domain.ErrUserNotFound
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	if err := s.cache.PutTokenPair(ctx, user.Email, *pair, s.refreshTTL); err != nil {
		return nil, nil, fmt.Errorf("cache token pair: %w", err)
	}

	return &ports.TokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil, nil
}

// --- validate-token ---

func (s *IdentityService) ValidateToken(ctx context.Context, accessToken string) (*ports.ValidationResult, error) {
	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		return &ports.ValidationResult{IsValid: false, IsVerified: false, Message: tokenErrorMessage(err)}, nil
	}

	cached, err := s.cache.GetTokenPair(ctx, claims.Email)
	if err != nil || cached == nil || claims.Role == domain.RoleRefresh || !constantTimeEqual(cached.AccessToken, accessToken) {
		return &ports.ValidationResult{IsValid: false, Message: tokenErrorMessage(domain.ErrNotAccessToken)}, nil
	}

	user, err := s.repo.FindByEmail(ctx, claims.Email)
	if err != nil {
		return &ports.ValidationResult{IsValid: false, Message: tokenErrorMessage(domain.ErrNotAccessToken)}, nil
	}

	return &ports.ValidationResult{IsValid: true, IsVerified: user.IsVerified, Message: "Token is valid"}, nil
}

// --- helpers ---

func (s *IdentityService) issueTokenPair(user *domain.User) (*domain.TokenPair, error) {
	access, err := s.codec.Sign(domain.Claims{
		Email:   user.Email,
		Subject: user.ID,
		Role:    domain.RoleAccess,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Sign(domain.Claims{
		Email:   user.Email,
		Subject: user.ID,
		Role:    domain.RoleRefresh,
	})
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func generateVerificationKey() (string, error) {
	buf := make([]byte, 16) // 128 bits, per spec §3 VerificationKey.key
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// tokenErrorMessage implements spec §4.5's error-kind to message mapping.
func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, domain.ErrTokenSignatureInvalid), errors.Is(err, domain.ErrTokenMalformed):
		return "Invalid token"
	case errors.Is(err, domain.ErrNotRefreshToken):
		return "Provided token is not a refresh token"
	case errors.Is(err, domain.ErrNotAccessToken):
		return "Provided token is not an access token"
	default:
		return "Token verification failed"
	}
}
