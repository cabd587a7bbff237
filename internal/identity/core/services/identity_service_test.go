package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wrenhollow/aegis/internal/identity/core/domain"
	"github.com/wrenhollow/aegis/internal/identity/core/ports"
)

// --- fakes ---

type fakeRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*domain.User)}
}

func (r *fakeRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copy := *u
	return &copy, nil
}

func (r *fakeRepo) Insert(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; ok {
		return domain.ErrEmailAlreadyExists
	}
	copy := *user
	r.users[user.Email] = &copy
	return nil
}

func (r *fakeRepo) UpdateVerified(ctx context.Context, userID string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == userID {
			u.IsVerified = verified
			return nil
		}
	}
	return domain.ErrUserNotFound
}

type fakeCache struct {
	mu     sync.Mutex
	tokens map[string]domain.TokenPair
	verify map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{tokens: make(map[string]domain.TokenPair), verify: make(map[string]string)}
}

func (c *fakeCache) PutTokenPair(ctx context.Context, email string, pair domain.TokenPair, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[email] = pair
	return nil
}

func (c *fakeCache) GetTokenPair(ctx context.Context, email string) (*domain.TokenPair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.tokens[email]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *fakeCache) DeleteTokenPair(ctx context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, email)
	return nil
}

func (c *fakeCache) PutVerificationKey(ctx context.Context, key, email string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verify[key] = email
	return nil
}

func (c *fakeCache) GetVerificationKey(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verify[key], nil
}

func (c *fakeCache) DeleteVerificationKey(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.verify, key)
	return nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (fakeHasher) Verify(password, hash string) bool     { return "hashed:"+password == hash }

type fakeCodec struct {
	mu     sync.Mutex
	issued map[string]domain.Claims
	seq    int
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{issued: make(map[string]domain.Claims)}
}

func (f *fakeCodec) Sign(c domain.Claims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	token := "token-" + string(rune('A'+f.seq))
	f.issued[token] = c
	return token, nil
}

func (f *fakeCodec) Verify(token string) (*domain.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.issued[token]
	if !ok {
		return nil, domain.ErrTokenMalformed
	}
	cp := c
	return &cp, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) SendVerificationEmail(ctx context.Context, toEmail, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, toEmail)
	return nil
}

// --- test harness ---

type harness struct {
	repo   *fakeRepo
	cache  *fakeCache
	hasher fakeHasher
	codec  *fakeCodec
	mailer *fakeMailer
	svc    *IdentityService
}

func newHarness() *harness {
	h := &harness{
		repo:   newFakeRepo(),
		cache:  newFakeCache(),
		hasher: fakeHasher{},
		codec:  newFakeCodec(),
		mailer: &fakeMailer{},
	}
	h.svc = NewIdentityService(h.repo, h.cache, h.hasher, h.codec, h.mailer, nil, 24*time.Hour, 30*time.Minute)
	return h
}

// --- tests ---

func TestSignUpHappyPath(t *testing.T) {
	h := newHarness()
	resp, err := h.svc.SignUp(context.Background(), ports.SignUpCmd{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "Valid1Password!",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("expected success status, got %q", resp.Status)
	}

	u, err := h.repo.FindByEmail(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("expected user to be persisted: %v", err)
	}
	if u.IsVerified {
		t.Error("expected new user to be unverified")
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	h := newHarness()
	cmd := ports.SignUpCmd{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "Valid1Password!"}
	if _, err := h.svc.SignUp(context.Background(), cmd); err != nil {
		t.Fatalf("first sign-up failed: %v", err)
	}
	if _, err := h.svc.SignUp(context.Background(), cmd); err != domain.ErrEmailAlreadyExists {
		t.Errorf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestSignUpWeakPasswordRejected(t *testing.T) {
	h := newHarness()
	_, err := h.svc.SignUp(context.Background(), ports.SignUpCmd{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "weak",
	})
	if err != domain.ErrWeakPassword {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
}

func TestVerifyUserFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, _ = h.svc.SignUp(ctx, ports.SignUpCmd{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "Valid1Password!"})

	var key string
	for k, email := range h.cache.verify {
		if email == "jane@example.com" {
			key = k
		}
	}
	if key == "" {
		t.Fatal("expected a verification key to have been cached")
	}

	resp, err := h.svc.VerifyUser(ctx, key)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("expected success, got %+v", resp)
	}

	// Repeat verification with the same key should still succeed
	// idempotently, per spec's verification-link resolution.
	resp2, err := h.svc.VerifyUser(ctx, key)
	if err != nil {
		t.Fatalf("repeat verify: %v", err)
	}
	if resp2.Status != "success" {
		t.Errorf("expected idempotent success on repeat verify, got %+v", resp2)
	}
}

func TestVerifyUserInvalidKey(t *testing.T) {
	h := newHarness()
	if _, err := h.svc.VerifyUser(context.Background(), "nonexistent-key"); err != domain.ErrInvalidKey {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestSignInAndValidateRoundTrip(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, _ = h.svc.SignUp(ctx, ports.SignUpCmd{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "Valid1Password!"})

	tokens, err := h.svc.SignIn(ctx, ports.SignInCmd{Email: "jane@example.com", Password: "Valid1Password!"})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}

	result, err := h.svc.ValidateToken(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.IsValid {
		t.Errorf("expected valid token, got %+v", result)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, _ = h.svc.SignUp(ctx, ports.SignUpCmd{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "Valid1Password!"})

	if _, err := h.svc.SignIn(ctx, ports.SignInCmd{Email: "jane@example.com", Password: "WrongPassword1!"}); err != domain.ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, _ = h.svc.SignUp(ctx, ports.SignUpCmd{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "Valid1Password!"})
	tokens, _ := h.svc.SignIn(ctx, ports.SignInCmd{Email: "jane@example.com", Password: "Valid1Password!"})

	newTokens, invalid, err := h.svc.RefreshToken(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if invalid != nil {
		t.Fatalf("expected successful refresh, got %+v", invalid)
	}

	// Replay of the same refresh token must fail: single-use invariant.
	_, invalid2, err := h.svc.RefreshToken(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("replay refresh: %v", err)
	}
	if invalid2 == nil || invalid2.IsValid {
		t.Errorf("expected replay to be rejected, got %+v", invalid2)
	}

	// Validating the old access token should now fail (stale token after
	// a refresh cycle: the cache holds the new pair).
	result, err := h.svc.ValidateToken(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.IsValid {
		t.Error("expected pre-refresh access token to be invalid after refresh")
	}

	// The newly issued access token must validate.
	result2, err := h.svc.ValidateToken(ctx, newTokens.AccessToken)
	if err != nil {
		t.Fatalf("validate new: %v", err)
	}
	if !result2.IsValid {
		t.Error("expected newly issued access token to be valid")
	}
}

func TestValidateTokenRejectsRefreshRole(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, _ = h.svc.SignUp(ctx, ports.SignUpCmd{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "Valid1Password!"})
	tokens, _ := h.svc.SignIn(ctx, ports.SignInCmd{Email: "jane@example.com", Password: "Valid1Password!"})

	result, err := h.svc.ValidateToken(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.IsValid {
		t.Error("expected a refresh token to fail validate-token")
	}
	if result.Message != "Provided token is not an access token" {
		t.Errorf("unexpected message: %q", result.Message)
	}
}

func TestRefreshTokenRejectsAccessRole(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, _ = h.svc.SignUp(ctx, ports.SignUpCmd{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "Valid1Password!"})
	tokens, _ := h.svc.SignIn(ctx, ports.SignInCmd{Email: "jane@example.com", Password: "Valid1Password!"})

	_, invalid, err := h.svc.RefreshToken(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if invalid == nil || invalid.IsValid {
		t.Fatal("expected an access token to be rejected by refresh-token")
	}
	if invalid.Message != "Provided token is not a refresh token" {
		t.Errorf("unexpected message: %q", invalid.Message)
	}
}
