package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the access token payload. StandardClaims.Id carries the jti used for revocation.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.StandardClaims
}

// NewClaims builds claims for id with a fresh jti, valid for ttl from now.
func NewClaims(id Identity, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		Name:  id.Name,
		Email: id.Email,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   id.UserID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
}

func (c Claims) Identity() Identity {
	id := Identity{
		UserID:  c.Subject,
		Email:   c.Email,
		Name:    c.Name,
		TokenID: c.Id,
	}
	if c.ExpiresAt > 0 {
		id.ExpiresAt = time.Unix(c.ExpiresAt, 0).UTC()
	}
	return id
}

func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseAndVerifyHS256 checks the signature and the time based claims (exp, iat, nbf).
func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Id == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
