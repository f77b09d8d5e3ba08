// Package utils issues and reads the customer tokens the auth service
// hands out.  The funnel only reads them; NewCustomerToken exists for
// local tooling and tests.
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/ticket-funnel/internal/model"
)

var ErrInvalidToken = errors.New("invalid customer token")

// CustomerClaims is the payload of a customer access token.  The subject
// is the customer id.
type CustomerClaims struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Region string `json:"region,omitempty"`
	jwt.RegisteredClaims
}

// NewCustomerToken signs an HS256 token for c valid for ttl.
func NewCustomerToken(secret string, c model.Customer, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := CustomerClaims{
		Name:   c.Name,
		Email:  c.Email,
		Phone:  c.Phone,
		Region: c.Region,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseCustomerToken verifies raw and returns the customer it names.
func ParseCustomerToken(secret, raw string) (*model.Customer, error) {
	var claims CustomerClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &model.Customer{
		ID:     claims.Subject,
		Name:   claims.Name,
		Email:  claims.Email,
		Phone:  claims.Phone,
		Region: claims.Region,
	}, nil
}
