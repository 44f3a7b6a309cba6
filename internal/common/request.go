package common

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
)

type actorKey struct{}

// WithUserID stores the authenticated sales user on ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(id))
}

// UserID returns the authenticated sales user. Blank identifiers count as absent.
func UserID(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(actorKey{}).(string)
	return id, id != ""
}

// ClientIP returns the caller address: the first X-Forwarded-For hop, then X-Real-IP,
// then the connection peer.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// AtoiDefault parses value, returning def for blank or malformed input.
func AtoiDefault(value string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return n
}
