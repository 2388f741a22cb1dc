package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/transport"
)

// Predicate is one of the permission evaluator functions.
type Predicate func(*Session) bool

// RBACAuthorization turns permission predicates into chi middleware.
type RBACAuthorization struct {
	*transport.BaseHandler
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{BaseHandler: transport.NewBaseHandler(logger)}
}

// Require admits the request when the session satisfies the predicate.
// A missing session is a 401, a failed predicate a 403.
func (ra *RBACAuthorization) Require(name string, allowed Predicate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				ra.Logger.Warn("authorization check failed: session not found in context")
				ra.HandleServiceError(w, internal.ErrUnauthenticated)
				return
			}

			if !allowed(sess) {
				ra.Logger.WarnContext(r.Context(), "access denied: insufficient capability",
					"user_id", sess.UserID,
					"required", name,
					"role", sess.RoleName)
				ra.HandleServiceError(w, internal.ErrUnauthorizedAccess)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.Require("admin", CanAccessAdminPanel)
}

func (ra *RBACAuthorization) RequireSubmitter() func(http.Handler) http.Handler {
	return ra.Require("submit", CanSubmitExpenses)
}

func (ra *RBACAuthorization) RequireApprovalQueue() func(http.Handler) http.Handler {
	return ra.Require("approval_queue", CanViewApprovalQueue)
}

func (ra *RBACAuthorization) RequireDashboard() func(http.Handler) http.Handler {
	return ra.Require("process_or_admin", CanViewDashboard)
}
