package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Veraticus/chargedesk/internal/auth"
	"github.com/Veraticus/chargedesk/internal/common"
)

type loggerMiddleware struct {
	log *slog.Logger
}

func newLoggerMiddleware(log *slog.Logger) *loggerMiddleware {
	return &loggerMiddleware{log: log}
}

// handler puts a request-scoped logger in the context. It must run after
// middleware.RequestID.
func (m *loggerMiddleware) handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enriched := m.log.With(
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
		)
		next.ServeHTTP(w, r.WithContext(common.WithLogger(r.Context(), enriched)))
	})
}

type profileKey struct{}

// sessionMiddleware checks Bearer session tokens and puts the caller's
// profile in the context.
type sessionMiddleware struct {
	tokens *auth.Issuer
}

// authenticate requires a valid session.
func (m *sessionMiddleware) authenticate(next http.Handler) http.Handler {
	return m.check(next, true)
}

// identify accepts anonymous requests but still rejects a bad token.
func (m *sessionMiddleware) identify(next http.Handler) http.Handler {
	return m.check(next, false)
}

func (m *sessionMiddleware) check(next http.Handler, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if !required {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing Authorization header")
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid Authorization header")
			return
		}

		profile, err := m.tokens.Verify(parts[1])
		if err != nil {
			handleError(w, r, err)
			return
		}
		if profile.Role == auth.RoleAgent && strings.TrimSpace(profile.AgentName) == "" {
			writeError(w, http.StatusForbidden, "forbidden", "agent session has no agent name")
			return
		}

		ctx := context.WithValue(r.Context(), profileKey{}, profile)
		ctx = common.WithLogger(ctx, common.LoggerFrom(ctx).With("user", profile.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireManager rejects callers whose profile may not manage records. It
// must run after authenticate.
func requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile, ok := profileFrom(r.Context())
		if !ok || !profile.CanManage() {
			writeError(w, http.StatusForbidden, "forbidden", "manager role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// agentScope returns the agent an Agent session is confined to. Managers
// and anonymous callers on an open server are not confined.
func agentScope(ctx context.Context) (string, bool) {
	profile, ok := profileFrom(ctx)
	if !ok || profile.Role != auth.RoleAgent {
		return "", false
	}
	return strings.TrimSpace(profile.AgentName), true
}

// profileFrom returns the authenticated caller, if any.
func profileFrom(ctx context.Context) (auth.Profile, bool) {
	p, ok := ctx.Value(profileKey{}).(auth.Profile)
	return p, ok
}
