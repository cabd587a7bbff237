package broker

import (
	"errors"
	"testing"

	"github.com/wrenhollow/aegis/internal/identity/core/domain"
)

func TestMapDomainError(t *testing.T) {
	cases := []struct {
		err         error
		wantMessage string
		wantKind    string
	}{
		{domain.ErrEmailAlreadyExists, "User with such email already exists", KindConflict},
		{domain.ErrUserNotFound, "no such user", KindConflict},
		{domain.ErrInvalidCredentials, "bad password", KindConflict},
		{domain.ErrInvalidEmail, domain.ErrInvalidEmail.Error(), KindValidation},
		{domain.ErrInvalidName, domain.ErrInvalidName.Error(), KindValidation},
		{domain.ErrWeakPassword, domain.ErrWeakPassword.Error(), KindValidation},
		{domain.ErrInvalidKey, "invalid verification key", KindInvalidKey},
		{errors.New("boom"), "identity service unavailable", ""},
	}

	for _, c := range cases {
		gotMessage, gotKind := mapDomainError(c.err)
		if gotMessage != c.wantMessage || gotKind != c.wantKind {
			t.Errorf("mapDomainError(%v) = (%q, %q), want (%q, %q)", c.err, gotMessage, gotKind, c.wantMessage, c.wantKind)
		}
	}
}
