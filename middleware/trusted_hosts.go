package middleware

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/utils"
)

// TrustedHosts rejects requests whose Host header is not allowed. Entries match
// exactly, "*" allows any host and "*.example.com" allows any subdomain.
type TrustedHosts struct {
	exact    map[string]struct{}
	suffixes []string
	allowAll bool
	logger   *zap.Logger
}

// NewTrustedHosts creates the middleware from the configured host list
func NewTrustedHosts(allowed []string, logger *zap.Logger) *TrustedHosts {
	m := &TrustedHosts{
		exact:  make(map[string]struct{}, len(allowed)),
		logger: logger,
	}
	for _, h := range allowed {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "":
		case h == "*":
			m.allowAll = true
		case strings.HasPrefix(h, "*."):
			m.suffixes = append(m.suffixes, h[1:])
		default:
			m.exact[h] = struct{}{}
		}
	}
	return m
}

// Handler is the middleware
func (m *TrustedHosts) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Allowed(r.Host) {
			m.logger.Warn("untrusted host rejected",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("host", r.Host))
			_ = utils.WriteBadRequest(w, "Invalid host header", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allowed reports whether host, with or without port, is trusted
func (m *TrustedHosts) Allowed(host string) bool {
	if m.allowAll {
		return true
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "" {
		return false
	}

	if _, ok := m.exact[host]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
