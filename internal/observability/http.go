package observability

import (
	"net"
	"net/http"
	"strings"
)

// RequestMeta is the client metadata attached to long-lived connections for
// log and trace correlation.
type RequestMeta struct {
	DeviceID  string
	RequestID string
	IP        string
}

// MetaFromRequest extracts client metadata from the upgrade request. The
// X-Forwarded-For chain wins over the socket address when a proxy sits in
// front.
func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{
		DeviceID:  r.Header.Get("X-Device-Id"),
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
