package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// RoleAdmin is the only role accepted by the operator API
const RoleAdmin = "admin"

var ErrInvalidToken = errors.New("invalid admin token")

// IssueToken signs an HS256 operator token for subject valid for ttl
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret is not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": RoleAdmin,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates an operator token and returns its subject
func ParseToken(secret, token string) (string, error) {
	if secret == "" {
		return "", ErrInvalidToken
	}
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	if role, _ := claims["role"].(string); role != RoleAdmin {
		return "", ErrInvalidToken
	}
	if _, ok := claims["exp"]; !ok {
		return "", ErrInvalidToken
	}
	subject, _ := claims["sub"].(string)
	return subject, nil
}
