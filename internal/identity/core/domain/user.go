package domain

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// User is the credential-store aggregate. Email is the identity key;
// is_verified transitions false→true exactly once and never reverts.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var nameRe = regexp.MustCompile(`^[\p{L}]{1,64}$`)

// NewUser validates the sign-up shape and assigns identity. It is the only
// way to construct a User with invariants intact.
func NewUser(email, firstName, lastName, passwordHash string) (*User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if !nameRe.MatchString(firstName) || !nameRe.MatchString(lastName) {
		return nil, ErrInvalidName
	}

	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		// email is a case-sensitive identity key (spec §3); only whitespace
		// is trimmed, never case-folded, so this matches byte-for-byte
		// against every FindByEmail lookup.
		Email:        strings.TrimSpace(email),
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: passwordHash,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// MarkVerified flips is_verified to true. Callers must not call this more
// than once per user. The verify-user flow does not use it: it checks
// IsVerified and persists the flag through UserRepository.UpdateVerified.
func (u *User) MarkVerified() {
	u.IsVerified = true
	u.UpdatedAt = time.Now().UTC()
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces spec §4.5's sign-up password policy: 8-128
// characters, at least one upper, lower, digit, and symbol.
func ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > 128 {
		return ErrWeakPassword
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return ErrWeakPassword
	}
	return nil
}
