package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quizgenius-service/internal/domain"
)

const issuerName = "quizgenius"

// Claims carried by every access token. The subject is the user id (empty for admin).
type Claims struct {
	Role     domain.Role `json:"role"`
	Username string      `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for principal.
func (i *Issuer) Issue(principal domain.Principal) (string, error) {
	now := i.now()
	claims := &Claims{
		Role:     principal.Role,
		Username: principal.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID,
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the principal it was issued for.
func (i *Issuer) Parse(raw string) (domain.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	switch claims.Role {
	case domain.RoleAdmin, domain.RoleStudent:
	default:
		return domain.Principal{}, fmt.Errorf("%w: unknown role %q", domain.ErrUnauthorized, claims.Role)
	}
	return domain.Principal{Role: claims.Role, UserID: claims.Subject, Username: claims.Username}, nil
}
