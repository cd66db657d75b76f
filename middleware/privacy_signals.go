package middleware

import (
	"net"
	"net/http"
	"strings"
)

const (
	// DoNotTrackHeader is the legacy do-not-track request header
	DoNotTrackHeader = "DNT"

	// GlobalPrivacyControlHeader is the Global Privacy Control request header
	GlobalPrivacyControlHeader = "Sec-GPC"
)

// RequestPrivacy records the client's opt-out signals and address in the request
// context. Run it after chi's RealIP so proxied addresses are used.
func RequestPrivacy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signals := PrivacySignals{
			DoNotTrack:           headerIsOne(r, DoNotTrackHeader),
			GlobalPrivacyControl: headerIsOne(r, GlobalPrivacyControlHeader),
		}

		ctx := WithPrivacySignals(r.Context(), signals)
		ctx = WithClientIP(ctx, remoteHost(r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func headerIsOne(r *http.Request, name string) bool {
	return strings.TrimSpace(r.Header.Get(name)) == "1"
}

// remoteHost strips the port from a RemoteAddr. RealIP stores bare addresses.
func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
