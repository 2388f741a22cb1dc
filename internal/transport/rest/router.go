package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-reporting/internal/attachment"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	"github.com/frahmantamala/expense-reporting/internal/dashboard"
	"github.com/frahmantamala/expense-reporting/internal/expense"
	"github.com/frahmantamala/expense-reporting/internal/role"
	"github.com/frahmantamala/expense-reporting/internal/transport/middleware"
	"github.com/frahmantamala/expense-reporting/internal/transport/swagger"
	"github.com/frahmantamala/expense-reporting/internal/user"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router mounts. Nil handlers are skipped so
// tests can mount a subset.
type Handlers struct {
	Health     *HealthHandler
	Auth       *auth.Handler
	Expense    *expense.Handler
	Attachment *attachment.Handler
	Dashboard  *dashboard.Handler
	Role       *role.Handler
	User       *user.Handler
	OpenAPI    *swagger.Document
}

type Options struct {
	AllowedOrigins string
	MetricsEnabled bool
	MetricsPath    string
	ActionLimit    *middleware.RateLimiter
	ReadLimit      *middleware.RateLimiter
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options, logger *slog.Logger) {
	rbac := auth.NewRBACAuthorization(logger)

	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.Metrics)
	router.Use(middleware.LoggingMiddleware())

	if opts.MetricsEnabled {
		router.Handle(opts.MetricsPath, promhttp.Handler())
	}
	if h.OpenAPI != nil {
		router.Get("/openapi.yml", h.OpenAPI.ServeHTTP)
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", h.Auth.Login)
			ar.Post("/logout", h.Auth.Logout)
			ar.Group(func(sr chi.Router) {
				sr.Use(h.Auth.SessionMiddleware)
				sr.Get("/me", h.Auth.Me)
				sr.Post("/change-password", h.Auth.ChangePassword)
			})
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.SessionMiddleware)
			pr.Use(h.Auth.RequirePasswordCurrent)

			if h.Expense != nil {
				pr.Route("/expenses", func(er chi.Router) {
					er.With(limit(opts.ReadLimit)).Get("/", h.Expense.ListExpenses)
					er.With(rbac.RequireSubmitter()).Post("/", h.Expense.CreateExpense)
					er.Get("/{id}", h.Expense.GetExpense)
					er.Patch("/{id}", h.Expense.UpdateExpense)
					er.Delete("/{id}", h.Expense.DeleteExpense)
					er.Post("/{id}/submit", h.Expense.SubmitExpense)

					if h.Attachment != nil {
						er.Post("/{id}/attachments", h.Attachment.Upload)
						er.Get("/{id}/attachments/{attachmentId}", h.Attachment.Download)
					}
				})

				pr.With(rbac.RequireApprovalQueue()).Get("/approvals", h.Expense.ApprovalQueue)
				pr.With(limit(opts.ActionLimit)).Post("/approvals/action", h.Expense.ApplyAction)
			}

			if h.Dashboard != nil {
				pr.With(rbac.RequireDashboard(), limit(opts.ReadLimit)).
					Get("/dashboard/accounting", h.Dashboard.Accounting)
			}

			if h.Role == nil && h.User == nil {
				return
			}
			pr.Route("/admin", func(adm chi.Router) {
				adm.Use(rbac.RequireAdmin())

				if h.Role != nil {
					adm.Get("/roles", h.Role.ListRoles)
					adm.Post("/roles", h.Role.CreateRole)
					adm.Put("/roles/{id}", h.Role.UpdateRole)
					adm.Delete("/roles/{id}", h.Role.DeleteRole)
				}

				if h.User != nil {
					adm.Get("/users", h.User.ListUsers)
					adm.Post("/users", h.User.CreateUser)
					adm.Get("/users/managers", h.User.ListManagers)
					adm.Put("/users/{id}", h.User.UpdateUser)
					adm.Delete("/users/{id}", h.User.DeleteUser)
					adm.Post("/users/{id}/reset-password", h.User.ResetPassword)
				}
			})
		})
	})
}

func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Handler
}
