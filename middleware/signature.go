package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/internal/webhook"
	"github.com/cbc-agent/analytics-ingest/utils"
)

// DeliveryAuthenticator verifies a signed delivery
type DeliveryAuthenticator interface {
	Authenticate(d webhook.Delivery) error
}

// SignatureMiddleware admits requests whose JSON body is signed with the shared
// webhook secret in the X-Signature header
type SignatureMiddleware struct {
	authenticator DeliveryAuthenticator
	logger        *zap.Logger
}

// NewSignatureMiddleware creates a new SignatureMiddleware
func NewSignatureMiddleware(authenticator DeliveryAuthenticator, logger *zap.Logger) *SignatureMiddleware {
	return &SignatureMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// RequireSignature verifies the body signature and hands the body on unchanged
func (m *SignatureMiddleware) RequireSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestIDFromContext(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, utils.MaxBodyBytes))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				_ = utils.WriteBadRequest(w, "Request body too large", nil)
				return
			}
			_ = utils.WriteBadRequest(w, "Unable to read request body", nil)
			return
		}
		if !json.Valid(body) {
			_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
			return
		}

		err = m.authenticator.Authenticate(webhook.Delivery{
			Type:            r.URL.Path,
			Payload:         json.RawMessage(body),
			HeaderSignature: r.Header.Get(webhook.SignatureHeader),
		})
		if err != nil {
			m.logger.Warn("signed request rejected",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid signature")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
