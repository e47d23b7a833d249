package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/sweeper/internal/core"
)

// withClient adds the caller's IP and User-Agent to ctx for history events.
func withClient(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
}

// clientIP returns the host part of RemoteAddr, which TrustedRealIP has
// already resolved through trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
