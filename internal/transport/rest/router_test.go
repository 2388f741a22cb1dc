package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	"github.com/frahmantamala/expense-reporting/internal/core/events"
	"github.com/frahmantamala/expense-reporting/internal/dashboard"
	"github.com/frahmantamala/expense-reporting/internal/expense"
	"github.com/frahmantamala/expense-reporting/internal/role"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubAuthService maps bearer tokens straight to sessions.
type stubAuthService struct {
	sessions map[string]*auth.Session
}

func (s *stubAuthService) Login(context.Context, auth.LoginDTO, string) (*auth.Session, string, time.Time, error) {
	return nil, "", time.Time{}, internal.ErrUnauthenticated
}

func (s *stubAuthService) ChangePassword(context.Context, *auth.Session, auth.ChangePasswordDTO) (*auth.Session, string, time.Time, error) {
	return nil, "", time.Time{}, internal.ErrUnauthenticated
}

func (s *stubAuthService) Authenticate(_ context.Context, token string) (*auth.Session, string, time.Time, error) {
	if sess, ok := s.sessions[token]; ok {
		return sess, "", time.Time{}, nil
	}
	return nil, "", time.Time{}, internal.ErrUnauthenticated
}

type stubRows struct{}

func (stubRows) Rows(context.Context) ([]dashboard.Row, error) { return nil, nil }

type stubRoleService struct{}

func (stubRoleService) List(context.Context, *auth.Session) ([]*role.Role, error) {
	return []*role.Role{}, nil
}

func (stubRoleService) Create(context.Context, *auth.Session, role.RoleDTO) (*role.Role, error) {
	return &role.Role{}, nil
}

func (stubRoleService) Update(context.Context, *auth.Session, int64, role.RoleDTO) (*role.Role, error) {
	return &role.Role{}, nil
}

func (stubRoleService) Delete(context.Context, *auth.Session, int64) error { return nil }

// stubExpenseRepository serves a fixed set of reports for the queue.
type stubExpenseRepository struct {
	reports []*expense.Expense
}

func (r *stubExpenseRepository) Create(context.Context, *expense.Expense) error {
	return errors.New("not supported")
}

func (r *stubExpenseRepository) GetByID(context.Context, int64) (*expense.Expense, error) {
	return nil, internal.ErrExpenseNotFound
}

func (r *stubExpenseRepository) List(_ context.Context, scope expense.Scope) ([]*expense.Expense, error) {
	out := []*expense.Expense{}
	for _, e := range r.reports {
		if scope.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubExpenseRepository) UpdateDraft(context.Context, *expense.Expense) error {
	return errors.New("not supported")
}

func (r *stubExpenseRepository) DeleteDraft(context.Context, int64) error {
	return errors.New("not supported")
}

func (r *stubExpenseRepository) ApplyTransition(context.Context, int64, expense.Status, expense.Status, *expense.StepRecord, time.Time) error {
	return errors.New("not supported")
}

func report(id int64, status expense.Status, managerID *int64) *expense.Expense {
	return &expense.Expense{
		ID:            id,
		UserID:        10 + id,
		Owner:         &expense.Owner{ID: 10 + id, ManagerID: managerID},
		CurrentStatus: status,
	}
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

var _ = Describe("Router", func() {
	var router *chi.Mux

	BeforeEach(func() {
		// Given a router with sessions for an employee, an accountant and a
		// user who must change their password
		authSvc := &stubAuthService{sessions: map[string]*auth.Session{
			"employee":   {UserID: 1, Capabilities: auth.Capabilities{CanSubmit: true}},
			"accountant": {UserID: 3, Capabilities: auth.Capabilities{CanProcess: true}},
			"pending":    {UserID: 5, MustChangePassword: true, Capabilities: auth.Capabilities{IsAdmin: true}},
		}}
		managerID := int64(2)
		router = chi.NewRouter()
		RegisterAllRoutes(router, Handlers{
			Health:    NewHealthHandler(stubPinger{}, GinkgoT().TempDir()),
			Auth:      auth.NewHandler(authSvc, false, silentLogger()),
			Dashboard: dashboard.NewHandler(dashboard.NewService(stubRows{}, silentLogger()), silentLogger()),
			Role:      role.NewHandler(stubRoleService{}, silentLogger()),
			Expense: expense.NewHandler(expense.NewService(&stubExpenseRepository{reports: []*expense.Expense{
				report(1, expense.StatusManagerApproved, &managerID),
				report(2, expense.StatusSubmitted, nil),
				report(3, expense.StatusSubmitted, &managerID),
				report(4, expense.StatusDraft, nil),
			}}, events.NewEventBus(silentLogger()), silentLogger()), silentLogger()),
		}, Options{MetricsEnabled: true, MetricsPath: "/metrics"}, silentLogger())
	})

	call := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("serves liveness and readiness without a session", func() {
		Expect(call(http.MethodGet, "/api/v1/ping", "").Code).To(Equal(http.StatusOK))

		w := call(http.MethodGet, "/api/v1/health", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var resp HealthResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Components).To(HaveKey("database"))
		Expect(resp.Components).To(HaveKey("storage"))
	})

	It("requires a session for the dashboard", func() {
		Expect(call(http.MethodGet, "/api/v1/dashboard/accounting", "").Code).To(Equal(http.StatusUnauthorized))
	})

	It("applies the dashboard capability guard", func() {
		Expect(call(http.MethodGet, "/api/v1/dashboard/accounting", "employee").Code).To(Equal(http.StatusForbidden))
		Expect(call(http.MethodGet, "/api/v1/dashboard/accounting", "accountant").Code).To(Equal(http.StatusOK))
	})

	It("opens the approval queue to a process-only accountant", func() {
		// When the accountant asks for pending work
		w := call(http.MethodGet, "/api/v1/approvals", "accountant")

		// Then the accounting-eligible reports come back
		Expect(w.Code).To(Equal(http.StatusOK))
		var queue []expense.Expense
		Expect(json.NewDecoder(w.Body).Decode(&queue)).To(Succeed())
		ids := []int64{}
		for _, e := range queue {
			ids = append(ids, e.ID)
		}
		Expect(ids).To(ConsistOf(int64(1), int64(2)))
	})

	It("keeps the approval queue closed to submit-only users", func() {
		Expect(call(http.MethodGet, "/api/v1/approvals", "employee").Code).To(Equal(http.StatusForbidden))
	})

	It("blocks protected routes until the password is changed", func() {
		w := call(http.MethodGet, "/api/v1/dashboard/accounting", "pending")

		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodePasswordChangeRequired)))
	})

	It("still serves /auth/me to a user who must change their password", func() {
		Expect(call(http.MethodGet, "/api/v1/auth/me", "pending").Code).To(Equal(http.StatusOK))
	})

	It("keeps admin routes behind the admin guard", func() {
		Expect(call(http.MethodGet, "/api/v1/admin/roles", "employee").Code).To(Equal(http.StatusForbidden))
		Expect(call(http.MethodGet, "/api/v1/admin/roles", "accountant").Code).To(Equal(http.StatusForbidden))
	})

	It("exposes Prometheus metrics", func() {
		call(http.MethodGet, "/api/v1/ping", "")

		w := call(http.MethodGet, "/metrics", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("http_requests_total"))
	})

	It("echoes a trace id", func() {
		Expect(call(http.MethodGet, "/api/v1/ping", "").Header().Get("X-Trace-ID")).NotTo(BeEmpty())
	})
})

var _ = Describe("HealthHandler", func() {
	It("reports 503 when the database is down", func() {
		h := NewHealthHandler(stubPinger{err: errors.New("connection refused")}, GinkgoT().TempDir())
		w := httptest.NewRecorder()

		h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		var resp HealthResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Status).To(Equal(HealthUnhealthy))
		Expect(resp.Components["database"].Status).To(Equal(HealthUnhealthy))
	})

	It("reports 503 when the upload directory is missing", func() {
		h := NewHealthHandler(stubPinger{}, "/nonexistent/uploads")
		w := httptest.NewRecorder()

		h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})
})
