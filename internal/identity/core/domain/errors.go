package domain

import "errors"

// Sentinel errors the service layer returns; adapters translate these into
// their own transport's failure shape via mapDomainError.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidName        = errors.New("name must be alphabetic and between 1 and 64 characters")
	ErrWeakPassword       = errors.New("password does not meet complexity requirements")
	ErrAlreadyVerified    = errors.New("user is already verified")
	ErrInvalidKey         = errors.New("verification key is invalid or expired")

	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMalformed        = errors.New("invalid token")
	ErrTokenSignatureInvalid = errors.New("invalid token")
	ErrNotAccessToken        = errors.New("provided token is not an access token")
	ErrNotRefreshToken       = errors.New("provided token is not a refresh token")
)
