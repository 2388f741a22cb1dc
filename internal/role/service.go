package role

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
)

type RepositoryAPI interface {
	List(ctx context.Context) ([]*Role, error)
	GetByID(ctx context.Context, id int64) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, r *Role) error
	Update(ctx context.Context, r *Role) error
	// Delete removes the role unless a user still references it, in which
	// case it returns ErrRoleInUse.
	Delete(ctx context.Context, id int64) error
}

type ServiceAPI interface {
	List(ctx context.Context, actor *auth.Session) ([]*Role, error)
	Create(ctx context.Context, actor *auth.Session, dto RoleDTO) (*Role, error)
	Update(ctx context.Context, actor *auth.Session, id int64, dto RoleDTO) (*Role, error)
	Delete(ctx context.Context, actor *auth.Session, id int64) error
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

func (s *Service) authorize(actor *auth.Session, op string) error {
	if actor == nil {
		return internal.ErrUnauthenticated
	}
	if !auth.CanAccessAdminPanel(actor) {
		s.logger.Warn("role admin denied", "user_id", actor.UserID, "operation", op)
		return internal.ErrUnauthorizedAccess
	}
	return nil
}

func (s *Service) List(ctx context.Context, actor *auth.Session) ([]*Role, error) {
	if err := s.authorize(actor, "list"); err != nil {
		return nil, err
	}
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list roles", err)
	}
	return roles, nil
}

func (s *Service) Create(ctx context.Context, actor *auth.Session, dto RoleDTO) (*Role, error) {
	if err := s.authorize(actor, "create"); err != nil {
		return nil, err
	}
	dto.Normalize()
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}
	if err := s.ensureNameFree(ctx, dto.Name, 0); err != nil {
		return nil, err
	}

	now := s.now()
	r := &Role{CreatedAt: now, UpdatedAt: now}
	dto.apply(r)
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, s.storeError("failed to create role", err)
	}

	s.logger.Info("role created", "role_id", r.ID, "name", r.Name, "actor_id", actor.UserID)
	return r, nil
}

func (s *Service) Update(ctx context.Context, actor *auth.Session, id int64, dto RoleDTO) (*Role, error) {
	if err := s.authorize(actor, "update"); err != nil {
		return nil, err
	}
	dto.Normalize()
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError("failed to load role", err)
	}
	if err := s.ensureNameFree(ctx, dto.Name, id); err != nil {
		return nil, err
	}

	dto.apply(r)
	r.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, s.storeError("failed to update role", err)
	}

	s.logger.Info("role updated", "role_id", r.ID, "actor_id", actor.UserID)
	return r, nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.Session, id int64) error {
	if err := s.authorize(actor, "delete"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.storeError("failed to delete role", err)
	}
	s.logger.Info("role deleted", "role_id", id, "actor_id", actor.UserID)
	return nil
}

func (s *Service) ensureNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.repo.GetByName(ctx, name)
	switch {
	case errors.Is(err, internal.ErrRoleNotFound):
		return nil
	case err != nil:
		return internal.NewInternalError("failed to check role name", err)
	case existing.ID != selfID:
		return internal.ErrRoleNameTaken
	}
	return nil
}

// storeError passes domain errors through and hides everything else.
func (s *Service) storeError(msg string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	s.logger.Error(msg, "error", err)
	return internal.NewInternalError(msg, err)
}
