// Package identity verifies bearer ID tokens and yields the caller's email.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned for any credential that does not yield a
// verified email.
var ErrUnauthenticated = errors.New("unauthenticated")

type Identity struct {
	Subject string
	Email   string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tok == "" {
		return "", false
	}
	return tok, true
}

type emailClaims interface {
	email() string
}

func identityFrom(sub string, c emailClaims) (*Identity, error) {
	email := strings.TrimSpace(c.email())
	if email == "" {
		return nil, ErrUnauthenticated
	}
	return &Identity{Subject: sub, Email: email}, nil
}
