package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRevoked      = errors.New("token revoked")
)

// Identity is the verified caller. Email is the owner key for slots and reservations.
type Identity struct {
	UserID    string
	Email     string
	Name      string
	TokenID   string
	ExpiresAt time.Time
}

// Verifier resolves a bearer token into an Identity or fails with ErrUnauthorized.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// LocalVerifier verifies HS256 tokens in-process. Revocation is only checked when a checker is set.
type LocalVerifier struct {
	secret  string
	revoked RevocationChecker
}

func NewLocalVerifier(secret string, revoked RevocationChecker) *LocalVerifier {
	return &LocalVerifier{secret: secret, revoked: revoked}
}

func (v *LocalVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	claims, err := ParseAndVerifyHS256(token, v.secret)
	if err != nil {
		return Identity{}, ErrUnauthorized
	}
	if v.revoked != nil {
		revoked, err := v.revoked.IsRevoked(ctx, claims.Id)
		if err != nil {
			return Identity{}, err
		}
		if revoked {
			return Identity{}, errors.Join(ErrUnauthorized, ErrRevoked)
		}
	}
	return claims.Identity(), nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}

const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// SetIdentityHeaders replaces any caller supplied identity headers with the verified ones.
func SetIdentityHeaders(h http.Header, id Identity) {
	h.Del(HeaderUserID)
	h.Del(HeaderUserEmail)
	h.Del(HeaderUserName)
	h.Set(HeaderUserID, id.UserID)
	h.Set(HeaderUserEmail, id.Email)
	h.Set(HeaderUserName, id.Name)
}

// IdentityFromHeaders reads the identity injected by the gateway. ok is false without an email.
func IdentityFromHeaders(h http.Header) (Identity, bool) {
	id := Identity{
		UserID: strings.TrimSpace(h.Get(HeaderUserID)),
		Email:  strings.ToLower(strings.TrimSpace(h.Get(HeaderUserEmail))),
		Name:   strings.TrimSpace(h.Get(HeaderUserName)),
	}
	return id, id.Email != ""
}
