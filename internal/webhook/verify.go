package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// SignatureHeader carries the hex HMAC of the canonical payload.
	SignatureHeader = "X-Signature"

	// SignatureField is the fallback location inside the posted body.
	SignatureField = "signature"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside allowed window")
)

// Sign returns the lowercase hex HMAC-SHA256 of payload's canonical form under secret
func Sign(payload any, secret string) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return sum(canonical, secret), nil
}

// Verify reports whether signature authenticates payload under secret.
// The comparison is constant time. A payload that cannot be canonicalized still costs
// one HMAC and one comparison before being rejected.
func Verify(payload any, signature, secret string) bool {
	provided := []byte(strings.ToLower(strings.TrimSpace(signature)))

	canonical, err := Canonicalize(payload)
	if err != nil {
		hmac.Equal([]byte(sum(nil, secret)), provided)
		return false
	}
	return hmac.Equal([]byte(sum(canonical, secret)), provided)
}

func sum(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// ResolveSignature picks the signature to verify. The header wins over the body
// field; conflict is true when both are present and differ.
func ResolveSignature(header, field string) (signature string, conflict bool) {
	header = strings.TrimSpace(header)
	field = strings.TrimSpace(field)

	if header == "" {
		return field, false
	}
	return header, field != "" && !strings.EqualFold(field, header)
}

// Authenticator verifies webhook deliveries against the shared secret.
type Authenticator struct {
	secret  string
	maxSkew time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewAuthenticator creates an Authenticator. maxSkew <= 0 disables timestamp checks.
func NewAuthenticator(secret string, maxSkew time.Duration, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		secret:  secret,
		maxSkew: maxSkew,
		now:     time.Now,
		logger:  logger,
	}
}

// Delivery is what the HTTP boundary extracted from one webhook request.
type Delivery struct {
	Type            string
	Payload         any
	HeaderSignature string
	FieldSignature  string
	Timestamp       time.Time
}

// Authenticate returns nil when the delivery is signed by the shared secret and,
// if enabled, recent enough.
func (a *Authenticator) Authenticate(d Delivery) error {
	signature, conflict := ResolveSignature(d.HeaderSignature, d.FieldSignature)
	if conflict {
		a.logger.Warn("Webhook header and body signatures differ, using header",
			zap.String("webhook_type", d.Type),
		)
	}
	if signature == "" {
		return ErrMissingSignature
	}

	if !Verify(d.Payload, signature, a.secret) {
		a.logger.Warn("Webhook signature verification failed",
			zap.String("webhook_type", d.Type),
		)
		return ErrInvalidSignature
	}

	if a.maxSkew > 0 && !d.Timestamp.IsZero() {
		skew := a.now().Sub(d.Timestamp)
		if skew < 0 {
			skew = -skew
		}
		if skew > a.maxSkew {
			a.logger.Warn("Webhook timestamp rejected",
				zap.String("webhook_type", d.Type),
				zap.Duration("skew", skew),
			)
			return ErrStaleTimestamp
		}
	}

	return nil
}
