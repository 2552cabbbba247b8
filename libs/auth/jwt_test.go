package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

type revokedSet map[string]bool

func (s revokedSet) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s[jti], nil
}

func testIdentity() Identity {
	return Identity{UserID: "user-1", Email: "ada@example.com", Name: "Ada"}
}

func TestHS256RoundTrip(t *testing.T) {
	claims := NewClaims(testIdentity(), time.Hour)
	secret := "test-secret"

	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	parsed, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if parsed.Subject != "user-1" || parsed.Email != "ada@example.com" || parsed.Name != "Ada" {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if parsed.Id == "" || parsed.Id != claims.Id {
		t.Fatalf("expected jti %q, got %q", claims.Id, parsed.Id)
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	claims := NewClaims(testIdentity(), -time.Minute)
	token, err := SignHS256(claims, "s")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "s"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNoneAlgorithmRejected(t *testing.T) {
	claims := NewClaims(testIdentity(), time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "s"); err == nil {
		t.Fatal("expected alg=none token to be rejected")
	}
}

func TestLocalVerifier(t *testing.T) {
	claims := NewClaims(testIdentity(), time.Hour)
	token, _ := SignHS256(claims, "s")

	v := NewLocalVerifier("s", revokedSet{})
	id, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if id.Email != "ada@example.com" || id.TokenID != claims.Id || id.ExpiresAt.IsZero() {
		t.Fatalf("unexpected identity %+v", id)
	}

	revoked := NewLocalVerifier("s", revokedSet{claims.Id: true})
	_, err = revoked.Verify(context.Background(), token)
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected revoked unauthorized error, got %v", err)
	}

	if _, err := v.Verify(context.Background(), "garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	if _, ok := BearerToken(req); ok {
		t.Fatal("expected no token")
	}
	req.Header.Set("Authorization", "Bearer   ")
	if _, ok := BearerToken(req); ok {
		t.Fatal("expected blank token to be rejected")
	}
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	if tok, ok := BearerToken(req); !ok || tok != "abc.def.ghi" {
		t.Fatalf("unexpected token %q", tok)
	}
}

func TestIdentityHeaders(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderUserEmail, "mallory@example.com")
	SetIdentityHeaders(h, Identity{UserID: "u1", Email: "Ada@Example.com", Name: "Ada"})

	id, ok := IdentityFromHeaders(h)
	if !ok {
		t.Fatal("expected identity")
	}
	if id.Email != "ada@example.com" || id.UserID != "u1" || len(h.Values(HeaderUserEmail)) != 1 {
		t.Fatalf("unexpected identity %+v", id)
	}
	if _, ok := IdentityFromHeaders(http.Header{}); ok {
		t.Fatal("expected missing identity")
	}
}
