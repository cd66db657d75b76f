package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

const (
	// PrivacySignalsKey is the context key for the client's privacy signals
	PrivacySignalsKey contextKey = "privacy_signals"

	// ClientIPKey is the context key for the client address
	ClientIPKey contextKey = "client_ip"
)

// PrivacySignals are the opt-out signals a client sent with a request
type PrivacySignals struct {
	DoNotTrack           bool // DNT: 1
	GlobalPrivacyControl bool // Sec-GPC: 1
}

// OptedOut reports whether any signal asks not to be tracked
func (s PrivacySignals) OptedOut() bool {
	return s.DoNotTrack || s.GlobalPrivacyControl
}

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetPrivacySignalsFromContext retrieves the privacy signals from context
func GetPrivacySignalsFromContext(ctx context.Context) PrivacySignals {
	if val := ctx.Value(PrivacySignalsKey); val != nil {
		if signals, ok := val.(PrivacySignals); ok {
			return signals
		}
	}
	return PrivacySignals{}
}

// WithPrivacySignals adds privacy signals to the context
func WithPrivacySignals(ctx context.Context, signals PrivacySignals) context.Context {
	return context.WithValue(ctx, PrivacySignalsKey, signals)
}

// GetClientIPFromContext retrieves the client address from context
func GetClientIPFromContext(ctx context.Context) string {
	if val := ctx.Value(ClientIPKey); val != nil {
		if ip, ok := val.(string); ok {
			return ip
		}
	}
	return ""
}

// WithClientIP adds the client address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}
