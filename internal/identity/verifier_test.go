package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]bool{
		"":              false,
		"token":         false,
		"Basic abc":     false,
		"Bearer ":       false,
		"Bearer    ":    false,
		"bearer abc":    false,
		"Bearer abc.de": true,
	}
	for header, want := range cases {
		if _, ok := BearerToken(header); ok != want {
			t.Errorf("BearerToken(%q) ok=%v, want %v", header, ok, want)
		}
	}
}

func TestHMACVerifier(t *testing.T) {
	v, err := NewHMACVerifier("s3cret", "finlix-test", "")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	ctx := context.Background()
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	good, _ := SignHMAC("s3cret", "uid-1", "a@x.com", jwt.RegisteredClaims{Issuer: "finlix-test", ExpiresAt: exp})
	id, err := v.Verify(ctx, good)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Email != "a@x.com" || id.Subject != "uid-1" {
		t.Fatalf("unexpected identity %+v", id)
	}

	bad := map[string]string{}
	bad["wrong secret"], _ = SignHMAC("other", "uid-1", "a@x.com", jwt.RegisteredClaims{Issuer: "finlix-test", ExpiresAt: exp})
	bad["wrong issuer"], _ = SignHMAC("s3cret", "uid-1", "a@x.com", jwt.RegisteredClaims{Issuer: "elsewhere", ExpiresAt: exp})
	bad["expired"], _ = SignHMAC("s3cret", "uid-1", "a@x.com", jwt.RegisteredClaims{Issuer: "finlix-test", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))})
	bad["no expiry"], _ = SignHMAC("s3cret", "uid-1", "a@x.com", jwt.RegisteredClaims{Issuer: "finlix-test"})
	bad["no email"], _ = SignHMAC("s3cret", "uid-1", "", jwt.RegisteredClaims{Issuer: "finlix-test", ExpiresAt: exp})
	bad["garbage"] = "not.a.jwt"

	for name, tok := range bad {
		if _, err := v.Verify(ctx, tok); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}

	if _, err := NewHMACVerifier("", "", ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

type staticKeys map[string]*rsa.PublicKey

func (s staticKeys) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	k, ok := s[kid]
	if !ok {
		return nil, errors.New("unknown kid")
	}
	return k, nil
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims firebaseClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestFirebaseVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa key: %v", err)
	}
	v, err := NewFirebaseVerifier("finlix-dev", staticKeys{"k1": &key.PublicKey})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	now := time.Now()
	valid := firebaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://securetoken.google.com/finlix-dev",
			Audience:  jwt.ClaimStrings{"finlix-dev"},
			Subject:   "firebase-uid",
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: "borrower@x.com",
	}

	id, err := v.Verify(context.Background(), signRS256(t, key, "k1", valid))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Email != "borrower@x.com" || id.Subject != "firebase-uid" {
		t.Fatalf("unexpected identity %+v", id)
	}

	wrongAud := valid
	wrongAud.Audience = jwt.ClaimStrings{"other-project"}
	noExp := valid
	noExp.ExpiresAt = nil

	for name, tok := range map[string]string{
		"unknown kid":    signRS256(t, key, "k2", valid),
		"wrong audience": signRS256(t, key, "k1", wrongAud),
		"no expiry":      signRS256(t, key, "k1", noExp),
	} {
		if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}

	hs, _ := SignHMAC("secret", "x", "a@x.com", valid.RegisteredClaims)
	if _, err := v.Verify(context.Background(), hs); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("HS256 token must be rejected, got %v", err)
	}
}

func TestCertSourceCachesByMaxAge(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	der, _ := x509.MarshalPKIXPublicKey(&key.PublicKey)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Cache-Control", "public, max-age=600, must-revalidate")
		_ = json.NewEncoder(w).Encode(map[string]string{"k1": pemKey})
	}))
	defer srv.Close()

	src := NewCertSource(srv.URL, srv.Client())
	clock := time.Now()
	src.now = func() time.Time { return clock }

	if _, err := src.Key(context.Background(), "k1"); err != nil {
		t.Fatalf("key: %v", err)
	}
	if _, err := src.Key(context.Background(), "k1"); err != nil {
		t.Fatalf("key: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected one fetch while fresh, got %d", got)
	}

	clock = clock.Add(11 * time.Minute)
	if _, err := src.Key(context.Background(), "k1"); err != nil {
		t.Fatalf("key after expiry: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected refetch after max-age, got %d fetches", got)
	}

	if _, err := src.Key(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown kid")
	}
}

func TestMaxAge(t *testing.T) {
	if got := maxAge("public, max-age=19000, must-revalidate"); got != 19000*time.Second {
		t.Fatalf("maxAge = %v", got)
	}
	if got := maxAge("no-cache"); got != time.Hour {
		t.Fatalf("default maxAge = %v", got)
	}
}
