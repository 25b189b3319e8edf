// Package auth issues and verifies the bearer tokens used by the API.
// A token carries the customer id as subject and expires after 24 hours.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const tokenTTL = 24 * time.Hour

var (
	ErrTokenMissing = errors.New("Token missing")
	ErrTokenInvalid = errors.New("Invalid token")
)

// TokenIssuer signs and verifies HS256 tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Issue returns a signed token for the given customer id.
func (t *TokenIssuer) Issue(customerID uint, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"customer_id": customerID,
		"exp":         now.Add(tokenTTL).Unix(),
		"iat":         now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses the token and returns the customer id it carries.
func (t *TokenIssuer) Verify(tokenString string) (uint, error) {
	parsed, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrTokenInvalid
	}
	raw, ok := claims["customer_id"].(float64)
	if !ok || raw <= 0 {
		return 0, ErrTokenInvalid
	}
	return uint(raw), nil
}
