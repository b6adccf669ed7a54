package api

import (
	"context"
	"net/http"
)

// listener identifies which of the two HTTP listeners accepted a request.
type listener string

const (
	listenerTunnel listener = "tunnel"
	listenerLAN    listener = "lan"
)

// RequestOrigin classifies a request by listener identity and presence of
// the trusted-identity header. It is computed once per request and carried
// in the request context; handlers never inspect the header themselves.
type RequestOrigin string

// Request origins. Unknown covers the two suspicious combinations: a tunnel
// request without an identity and a LAN request carrying one.
const (
	OriginTunnelAuthenticated RequestOrigin = "tunnel-authenticated"
	OriginLAN                 RequestOrigin = "lan"
	OriginUnknown             RequestOrigin = "unknown"
)

type contextKey int

const originContextKey contextKey = iota

func classifyOrigin(l listener, identityPresent bool) RequestOrigin {
	switch {
	case l == listenerTunnel && identityPresent:
		return OriginTunnelAuthenticated
	case l == listenerLAN && !identityPresent:
		return OriginLAN
	default:
		return OriginUnknown
	}
}

// originMiddleware tags every request with its computed origin.
func (s *Server) originMiddleware(l listener) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identityPresent := r.Header.Get(s.identityHeader) != ""
			origin := classifyOrigin(l, identityPresent)
			ctx := context.WithValue(r.Context(), originContextKey, origin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func originFrom(ctx context.Context) RequestOrigin {
	if origin, ok := ctx.Value(originContextKey).(RequestOrigin); ok {
		return origin
	}
	return OriginUnknown
}

// requireOrigin rejects every request whose origin does not match want.
// Each listener is hard-wired to one capability set; an identity header on
// the wrong listener is itself suspicious and rejected, never ignored.
func (s *Server) requireOrigin(want RequestOrigin) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := originFrom(r.Context())
			if origin != want {
				s.logger.Warn().
					Str("origin", string(origin)).
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Msg("request rejected by authorization gate")
				s.respondError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
