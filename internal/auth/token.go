// Package auth parses patient session bearer tokens. The wizard never
// reads tokens itself; the parsed session is injected at construction so
// the flow is testable with a fake identity.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the authenticated patient identity carried by a bearer token.
type Session struct {
	ID    int64
	Name  string
	Email string
	Phone string
	Role  string
}

type patientClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

// ParseToken validates an HMAC-signed JWT and extracts the patient
// session. The token subject is the patient id.
func ParseToken(tokenString, secret string) (*Session, error) {
	if secret == "" {
		return nil, errors.New("auth: patient auth is not configured")
	}
	claims := patientClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("auth: token subject is not a patient id")
	}
	return &Session{
		ID:    id,
		Name:  claims.Name,
		Email: claims.Email,
		Phone: claims.Phone,
		Role:  claims.Role,
	}, nil
}

// SignToken issues a patient session token; used by tests and tooling.
func SignToken(s Session, secret string, ttl time.Duration) (string, error) {
	claims := patientClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(s.ID, 10),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Name:  s.Name,
		Email: s.Email,
		Phone: s.Phone,
		Role:  s.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
