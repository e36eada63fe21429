package gate

import (
	"encoding/json"
	"net/http"

	"github.com/gatekit/gatekit/pkg/audit"
)

// PrincipalResolver extracts the requesting principal from an HTTP
// request, typically from a session or a verified token. Returning a
// zero Principal with a nil error means the request is anonymous.
type PrincipalResolver func(r *http.Request) (Principal, error)

// DenialHandler renders a denied decision to the client.
type DenialHandler func(w http.ResponseWriter, r *http.Request, d Decision)

// ErrorHandler renders a gate evaluation failure to the client. Only
// reachable when graceful failure is disabled on the gate.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareOption configures the HTTP middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	onDenied DenialHandler
	onError  ErrorHandler
	audit    *audit.Logger
}

// WithDenialHandler overrides how denied decisions are rendered.
func WithDenialHandler(h DenialHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.onDenied = h
		}
	}
}

// WithErrorHandler overrides how evaluation failures are rendered.
func WithErrorHandler(h ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.onError = h
		}
	}
}

// WithAuditLogger records denied requests to the audit trail.
func WithAuditLogger(a *audit.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.audit = a
	}
}

// ResolvePrincipal creates middleware that resolves the requesting
// principal and stores it in the request context. Resolver failures are
// treated as anonymous requests; downstream gates deny them with an
// authentication reason.
func ResolvePrincipal(resolve PrincipalResolver) func(http.Handler) http.Handler {
	if resolve == nil {
		panic("gate: principal resolver is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolve(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Require creates middleware that evaluates the gate against the request
// principal and blocks denied requests. Decisions carrying a fallback
// path redirect there; unauthenticated denials answer 401; everything
// else answers 403 with the denial reason.
func Require(g Gate, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if g == nil {
		panic("gate: gate is required")
	}

	cfg := &middlewareConfig{
		onDenied: defaultDenialHandler,
		onError:  defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFromContext(r.Context())

			decision, err := g.Check(r.Context(), p)
			if err != nil {
				cfg.onError(w, r, err)
				return
			}
			if !decision.Allowed {
				if cfg.audit != nil {
					_ = cfg.audit.Record(r.Context(), audit.Event{
						TenantID: p.TenantID,
						UserID:   p.UserID,
						Action:   audit.ActionAccessDenied,
						Resource: r.URL.Path,
						Metadata: map[string]any{"reason": decision.Reason},
					})
				}
				cfg.onDenied(w, r, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func defaultDenialHandler(w http.ResponseWriter, r *http.Request, d Decision) {
	if d.Fallback != "" {
		http.Redirect(w, r, d.Fallback, http.StatusSeeOther)
		return
	}

	status := http.StatusForbidden
	if d.Reason == ReasonNotAuthenticated {
		status = http.StatusUnauthorized
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": d.Reason})
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
}
