package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
)

type RepositoryAPI interface {
	// Rows returns every expense report with its owner's manager id.
	Rows(ctx context.Context) ([]Row, error)
}

type ServiceAPI interface {
	Accounting(ctx context.Context, actor *auth.Session) (*Summary, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) Accounting(ctx context.Context, actor *auth.Session) (*Summary, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}
	if !auth.CanViewDashboard(actor) {
		s.logger.Warn("dashboard denied: insufficient capability", "user_id", actor.UserID)
		return nil, internal.ErrUnauthorizedAccess
	}

	rows, err := s.repo.Rows(ctx)
	if err != nil {
		s.logger.Error("failed to load dashboard rows", "error", err)
		return nil, internal.NewInternalError("failed to load dashboard", err)
	}

	sum := Compute(rows, s.now())
	return &sum, nil
}
