// Package privacytoken issues and validates the short-lived signed tokens that
// authorize guest data export and deletion.
package privacytoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the token is malformed or badly signed
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrPurposeMismatch is returned when a valid token was issued for another operation
	ErrPurposeMismatch = errors.New("token purpose mismatch")

	// ErrSubjectMismatch is returned when a valid token names another guest
	ErrSubjectMismatch = errors.New("token subject mismatch")
)

// DefaultIssuer is the iss claim of every token
const DefaultIssuer = "analytics-ingest"

// Grant is an issued token
type Grant struct {
	Token     string    `json:"token"`
	Purpose   Purpose   `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer signs and validates tokens with HS256
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// Config holds configuration for Issuer
type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// NewIssuer creates a token issuer
func NewIssuer(config Config) *Issuer {
	if config.TTL == 0 {
		config.TTL = 15 * time.Minute
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}

	return &Issuer{
		secret: []byte(config.Secret),
		ttl:    config.TTL,
		issuer: config.Issuer,
		now:    time.Now,
	}
}

// Issue signs a token for guestID and purpose
func (i *Issuer) Issue(guestID string, purpose Purpose) (*Grant, error) {
	if guestID == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if _, err := ParsePurpose(string(purpose)); err != nil {
		return nil, err
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   guestID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Grant{
		Token:     signed,
		Purpose:   purpose,
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

// Validate verifies tokenString and returns its claims
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims, nil
}

// Authorize validates tokenString and checks that it was issued to guestID for purpose
func (i *Issuer) Authorize(tokenString, guestID string, purpose Purpose) error {
	claims, err := i.Validate(tokenString)
	if err != nil {
		return err
	}
	if claims.Subject != guestID {
		return ErrSubjectMismatch
	}
	if claims.Purpose != purpose {
		return ErrPurposeMismatch
	}
	return nil
}
