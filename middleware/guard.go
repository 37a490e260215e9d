package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	authd "github.com/vantor/authd"
)

type identityContextKey struct{}

// IdentityFromContext returns the verified access identity injected by
// Guard.
func IdentityFromContext(ctx context.Context) (*authd.AccessIdentity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*authd.AccessIdentity)
	return identity, ok
}

// Guard rejects requests without a valid bearer access token. On
// success the verified identity is available via IdentityFromContext.
// Revoked tokens are rejected like invalid ones; the response never
// says which.
func Guard(engine *authd.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := engine.VerifyAccess(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

// ClientContext stamps the request's client IP, User-Agent and the
// optional X-Device-ID header into the context, where the engine picks
// them up for rate limiting, audit and flow token binding. Mount it
// outside Guard and any login handlers.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ctx = authd.WithClientIP(ctx, host)
		} else if r.RemoteAddr != "" {
			ctx = authd.WithClientIP(ctx, r.RemoteAddr)
		}
		if ua := r.UserAgent(); ua != "" {
			ctx = authd.WithUserAgent(ctx, ua)
		}
		if device := r.Header.Get("X-Device-ID"); device != "" {
			ctx = authd.WithDeviceID(ctx, device)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
