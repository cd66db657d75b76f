package privacytoken

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")

	// ErrInvalidPurpose is returned for a purpose claim outside the known set
	ErrInvalidPurpose = errors.New("invalid purpose")
)

// Purpose is the privacy-rights operation a token authorizes
type Purpose string

const (
	PurposeExport Purpose = "export"
	PurposeDelete Purpose = "delete"
)

// ParsePurpose validates a purpose string
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(s); p {
	case PurposeExport, PurposeDelete:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, s)
	}
}

// Claims are the claims of a privacy-rights token. The subject is the guest's
// pseudonymous id.
type Claims struct {
	jwt.RegisteredClaims
	Purpose Purpose `json:"purpose"`
}

// validateClaims checks the claims the parser does not
func validateClaims(claims *Claims) error {
	if claims.Subject == "" {
		return fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if claims.Purpose == "" {
		return fmt.Errorf("%w: purpose", ErrMissingClaim)
	}
	if _, err := ParsePurpose(string(claims.Purpose)); err != nil {
		return err
	}
	return nil
}
