// Package session issues and validates the signed session tokens that carry
// the authenticated principal.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// ErrInvalidToken is returned for any token that cannot be trusted.
var ErrInvalidToken = errors.New("invalid session token")

// Claims is the JWT payload of a session token.
type Claims struct {
	CompanyID string `json:"company_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	issuer string
}

// NewTokenManager creates a TokenManager. secret must not be empty.
func NewTokenManager(secret, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("session: signing secret is empty")
	}
	if issuer == "" {
		issuer = "leadinbox"
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer}, nil
}

// Issue signs a token for p valid for ttl.
func (tm *TokenManager) Issue(p model.Principal, ttl time.Duration) (string, error) {
	if p.UserID == "" || p.CompanyID == "" {
		return "", errors.New("session: user id and company id are required")
	}
	role := p.Role
	if role == "" {
		role = model.RoleMember
	}

	now := time.Now()
	claims := Claims{
		CompanyID: p.CompanyID,
		Email:     p.Email,
		Role:      string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenString and returns the principal it carries.
func (tm *TokenManager) Validate(tokenString string) (model.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" || claims.CompanyID == "" {
		return model.Principal{}, fmt.Errorf("%w: missing subject or company", ErrInvalidToken)
	}

	return model.Principal{
		UserID:    claims.Subject,
		CompanyID: claims.CompanyID,
		Email:     claims.Email,
		Role:      model.Role(claims.Role),
	}, nil
}
