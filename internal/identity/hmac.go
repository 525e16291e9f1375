package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type hmacClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func (c *hmacClaims) email() string { return c.Email }

// HMACVerifier accepts HS256 tokens signed with a shared secret. It is meant
// for local development and tests; production uses FirebaseVerifier.
type HMACVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewHMACVerifier(secret, issuer, audience string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("hmac verifier: secret is empty")
	}
	return &HMACVerifier{secret: []byte(secret), issuer: issuer, audience: audience}, nil
}

func (v *HMACVerifier) Verify(_ context.Context, raw string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &hmacClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || tok == nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return identityFrom(claims.Subject, claims)
}

// SignHMAC mints a token HMACVerifier accepts. Used by tests and local tooling.
func SignHMAC(secret, subject, email string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	c := hmacClaims{RegisteredClaims: claims, Email: email}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}
