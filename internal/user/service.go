package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
)

type RepositoryAPI interface {
	// List returns every user with role, manager and report count.
	List(ctx context.Context) ([]*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	RoleExists(ctx context.Context, roleID int64) (bool, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string, mustChange bool) error
	// Delete fails with ErrUserHasHistory while the user owns reports or
	// appears on an approval step.
	Delete(ctx context.Context, id int64) error
	// ListManagers returns users whose role can approve, by name.
	ListManagers(ctx context.Context) ([]Manager, error)
}

type ServiceAPI interface {
	List(ctx context.Context, actor *auth.Session) ([]*User, error)
	Create(ctx context.Context, actor *auth.Session, dto CreateUserDTO) (*User, error)
	Update(ctx context.Context, actor *auth.Session, id int64, dto UpdateUserDTO) (*User, error)
	Delete(ctx context.Context, actor *auth.Session, id int64) error
	ResetPassword(ctx context.Context, actor *auth.Session, id int64, dto ResetPasswordDTO) error
	Managers(ctx context.Context, actor *auth.Session) ([]Manager, error)
}

type Service struct {
	repo       RepositoryAPI
	bcryptCost int
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo RepositoryAPI, bcryptCost int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if bcryptCost == 0 {
		bcryptCost = internal.DefaultBCryptCost
	}
	return &Service{repo: repo, bcryptCost: bcryptCost, logger: logger, now: time.Now}
}

func (s *Service) authorize(actor *auth.Session, op string) error {
	if actor == nil {
		return internal.ErrUnauthenticated
	}
	if !auth.CanAccessAdminPanel(actor) {
		s.logger.Warn("user admin denied", "user_id", actor.UserID, "operation", op)
		return internal.ErrUnauthorizedAccess
	}
	return nil
}

func (s *Service) List(ctx context.Context, actor *auth.Session) ([]*User, error) {
	if err := s.authorize(actor, "list"); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.storeError("failed to list users", err)
	}
	return users, nil
}

func (s *Service) Create(ctx context.Context, actor *auth.Session, dto CreateUserDTO) (*User, error) {
	if err := s.authorize(actor, "create"); err != nil {
		return nil, err
	}
	dto.Normalize()
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}
	if err := s.ensureEmailFree(ctx, dto.Email, 0); err != nil {
		return nil, err
	}
	if err := s.ensureRole(ctx, dto.RoleID); err != nil {
		return nil, err
	}
	if err := s.ensureManager(ctx, dto.ManagerID, 0); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	now := s.now()
	u := &User{
		Name:         dto.Name,
		Email:        dto.Email,
		PasswordHash: hash,
		RoleID:       dto.RoleID,
		ManagerID:    dto.ManagerID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, s.storeError("failed to create user", err)
	}

	s.logger.Info("user created", "user_id", u.ID, "role_id", u.RoleID, "actor_id", actor.UserID)
	return s.reload(ctx, u.ID)
}

func (s *Service) Update(ctx context.Context, actor *auth.Session, id int64, dto UpdateUserDTO) (*User, error) {
	if err := s.authorize(actor, "update"); err != nil {
		return nil, err
	}
	dto.Normalize()
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError("failed to load user", err)
	}

	if dto.Name != nil {
		u.Name = *dto.Name
	}
	if dto.Email != nil && *dto.Email != u.Email {
		if err := s.ensureEmailFree(ctx, *dto.Email, id); err != nil {
			return nil, err
		}
		u.Email = *dto.Email
	}
	if dto.RoleID != nil && *dto.RoleID != u.RoleID {
		if err := s.ensureRole(ctx, *dto.RoleID); err != nil {
			return nil, err
		}
		u.RoleID = *dto.RoleID
	}
	if dto.ManagerID.Set {
		if err := s.ensureManager(ctx, dto.ManagerID.Value, id); err != nil {
			return nil, err
		}
		u.ManagerID = dto.ManagerID.Value
	}
	if dto.IsActive != nil {
		if !*dto.IsActive && id == actor.UserID {
			return nil, internal.NewValidationFieldError("isActive", "cannot deactivate your own account", internal.ErrCodeSelfDelete)
		}
		u.IsActive = *dto.IsActive
	}
	u.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, s.storeError("failed to update user", err)
	}

	s.logger.Info("user updated", "user_id", id, "actor_id", actor.UserID)
	return s.reload(ctx, id)
}

func (s *Service) Delete(ctx context.Context, actor *auth.Session, id int64) error {
	if err := s.authorize(actor, "delete"); err != nil {
		return err
	}
	if id == actor.UserID {
		return internal.ErrSelfDelete
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.storeError("failed to delete user", err)
	}
	s.logger.Info("user deleted", "user_id", id, "actor_id", actor.UserID)
	return nil
}

// ResetPassword sets a new password and forces a change on next use.
func (s *Service) ResetPassword(ctx context.Context, actor *auth.Session, id int64, dto ResetPasswordDTO) error {
	if err := s.authorize(actor, "reset_password"); err != nil {
		return err
	}
	if verr := dto.Validate(); verr != nil {
		return verr
	}

	hash, err := auth.HashPassword(dto.NewPassword, s.bcryptCost)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, hash, true); err != nil {
		return s.storeError("failed to reset password", err)
	}

	s.logger.Info("password reset", "user_id", id, "actor_id", actor.UserID)
	return nil
}

func (s *Service) Managers(ctx context.Context, actor *auth.Session) ([]Manager, error) {
	if err := s.authorize(actor, "managers"); err != nil {
		return nil, err
	}
	managers, err := s.repo.ListManagers(ctx)
	if err != nil {
		return nil, s.storeError("failed to list managers", err)
	}
	return managers, nil
}

func (s *Service) reload(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError("failed to load user", err)
	}
	return u, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, internal.ErrUserNotFound):
		return nil
	case err != nil:
		return s.storeError("failed to check email", err)
	case existing.ID != selfID:
		return internal.ErrEmailTaken
	}
	return nil
}

func (s *Service) ensureRole(ctx context.Context, roleID int64) error {
	ok, err := s.repo.RoleExists(ctx, roleID)
	if err != nil {
		return s.storeError("failed to check role", err)
	}
	if !ok {
		return internal.NewValidationFieldError("roleId", "role does not exist", internal.ErrCodeRoleNotFound)
	}
	return nil
}

// ensureManager checks that managerID names another existing user.
func (s *Service) ensureManager(ctx context.Context, managerID *int64, selfID int64) error {
	if managerID == nil {
		return nil
	}
	if *managerID == selfID {
		return internal.NewValidationFieldError("managerId", "a user cannot be their own manager", internal.ErrCodeValidationFailed)
	}
	_, err := s.repo.GetByID(ctx, *managerID)
	if errors.Is(err, internal.ErrUserNotFound) {
		return internal.NewValidationFieldError("managerId", "manager does not exist", internal.ErrCodeUserNotFound)
	}
	if err != nil {
		return s.storeError("failed to check manager", err)
	}
	return nil
}

func (s *Service) storeError(msg string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	s.logger.Error(msg, "error", err)
	return internal.NewInternalError(msg, err)
}
