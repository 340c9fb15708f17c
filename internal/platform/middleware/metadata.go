package middleware

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"provisor/pkg/requestcontext"
)

// ClientMetadata extracts the client IP address and User-Agent from the
// request and adds them to the context, together with a parsed device label
// ("Chrome 126 / Mac OS X"). Audit entries record all three so operators can
// tell which console or integration triggered a provisioning run.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		rawUA := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, rawUA, DeviceLabel(rawUA))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceLabel condenses a raw User-Agent into a short human-readable
// description. Unparseable or empty agents yield "".
func DeviceLabel(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)

	name, version := ua.Browser()
	if name == "" {
		return ""
	}
	// Full versions read like build numbers; the major is enough.
	if major, _, ok := strings.Cut(version, "."); ok {
		version = major
	}

	label := name
	if version != "" {
		label += " " + version
	}
	if osName := ua.OSInfo().Name; osName != "" {
		label += " / " + osName
	}
	return label
}

// ClientIPFromRequest extracts the real client IP from the request, handling
// proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...);
	// the first is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// X-Real-IP is used by nginx and other proxies.
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" for direct connections ("[::1]:port" for IPv6).
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
