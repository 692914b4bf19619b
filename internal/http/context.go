package http

import (
	"context"
	"net"
	stdhttp "net/http"
	"strings"
)

// requestMeta is attached to every request by the request ID middleware. It is shared by
// pointer so the auth middleware can record the caller for the access log.
type requestMeta struct {
	ID       string
	ClientIP string
	UserID   string
}

type requestMetaKey struct{}

func withRequestMeta(ctx context.Context, meta *requestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) (*requestMeta, bool) {
	if ctx == nil {
		return nil, false
	}
	meta, ok := ctx.Value(requestMetaKey{}).(*requestMeta)
	return meta, ok && meta != nil
}

// RequestIDFromContext returns the X-Request-ID assigned to the current request, if any.
func RequestIDFromContext(ctx context.Context) string {
	if meta, ok := requestMetaFrom(ctx); ok {
		return meta.ID
	}
	return ""
}

// clientIPFromRequest prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer address.
func clientIPFromRequest(req *stdhttp.Request) string {
	if req == nil {
		return ""
	}

	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
