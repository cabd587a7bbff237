// Package ports declares the hexagon's boundary: primary.go is the API the
// identity service exposes to its transport adapters (the broker RPC
// surface); secondary.go is what it requires from its infrastructure
// adapters.
package ports

import "context"

// --- Inputs ---

type SignUpCmd struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

type SignInCmd struct {
	Email    string
	Password string
}

// --- Outputs ---

// StatusResponse is the success-shaped body for sign-up and verify-user
// (spec §6): these two operations never carry tokens.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TokenResponse is the success-shaped body for sign-in and refresh-token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ValidationResult is the in-band, never-an-error body for validate-token
// and the failure path of refresh-token (spec §7: token failures are data,
// not exceptions).
type ValidationResult struct {
	IsValid    bool   `json:"is_valid"`
	IsVerified bool   `json:"is_verified"`
	Message    string `json:"message"`
}

// IdentityService is the primary port: the five broker-reachable operations
// of spec §4.5.
type IdentityService interface {
	SignUp(ctx context.Context, cmd SignUpCmd) (*StatusResponse, error)
	VerifyUser(ctx context.Context, key string) (*StatusResponse, error)
	SignIn(ctx context.Context, cmd SignInCmd) (*TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, *ValidationResult, error)
	ValidateToken(ctx context.Context, accessToken string) (*ValidationResult, error)
}
