package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenService issues and validates the HS256 tokens accepted in jwt mode.
type TokenService struct {
	Secret     []byte
	Expiration time.Duration
}

// New signs a token for subject. A zero Expiration yields a token that
// never expires.
func (s *TokenService) New(subject string) (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("api: token: empty secret")
	}
	claims := jwt.StandardClaims{
		Subject:  subject,
		IssuedAt: time.Now().Unix(),
	}
	if s.Expiration > 0 {
		claims.ExpiresAt = time.Now().Add(s.Expiration).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// Validate checks the signature and expiry of token and returns its subject.
func (s *TokenService) Validate(token string) (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("api: token: empty secret")
	}
	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.Secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("api: token: %w", err)
	}
	return claims.Subject, nil
}
