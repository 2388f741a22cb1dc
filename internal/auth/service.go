package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"golang.org/x/crypto/bcrypt"
)

type RepositoryAPI interface {
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	FindAccountByID(ctx context.Context, id int64) (*Account, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string, mustChange bool) error
}

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO, clientIP string) (*Session, string, time.Time, error)
	ChangePassword(ctx context.Context, s *Session, dto ChangePasswordDTO) (*Session, string, time.Time, error)
	Authenticate(ctx context.Context, token string) (*Session, string, time.Time, error)
}

type Service struct {
	repo           RepositoryAPI
	tokens         TokenGeneratorAPI
	throttle       *LoginThrottle
	bcryptCost     int
	snapshotMaxAge time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

type Options struct {
	BCryptCost     int
	SnapshotMaxAge time.Duration
	Throttle       *LoginThrottle
}

func NewService(repo RepositoryAPI, tokens TokenGeneratorAPI, opts Options, logger *slog.Logger) *Service {
	cost := opts.BCryptCost
	if cost == 0 {
		cost = internal.DefaultBCryptCost
	}
	return &Service{
		repo:           repo,
		tokens:         tokens,
		throttle:       opts.Throttle,
		bcryptCost:     cost,
		snapshotMaxAge: opts.SnapshotMaxAge,
		logger:         logger,
		now:            time.Now,
	}
}

// Login verifies credentials and issues a fresh capability snapshot.
// Credential failures are reported identically whether the email exists or
// not.
func (s *Service) Login(ctx context.Context, dto LoginDTO, clientIP string) (*Session, string, time.Time, error) {
	dto.Normalize()

	allowed, retryAfter, err := s.throttle.Attempt(ctx, clientIP, dto.Email)
	if err != nil {
		s.logger.Error("login throttle failed", "error", err)
		return nil, "", time.Time{}, internal.NewInternalError("failed to check rate limit", err)
	}
	if !allowed {
		s.logger.Warn("login rate limited", "client_ip", clientIP, "retry_after", retryAfter)
		return nil, "", time.Time{}, internal.NewTooManyRequestsError("Too many login attempts. Try again later.").
			WithDetails(map[string]int64{"retryAfterSeconds": int64(retryAfter.Seconds()) + 1})
	}

	if verr := dto.Validate(); verr != nil {
		return nil, "", time.Time{}, verr
	}

	account, err := s.repo.FindAccountByEmail(ctx, dto.Email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, "", time.Time{}, internal.ErrInvalidCredentials
		}
		s.logger.Error("failed to load account", "error", err)
		return nil, "", time.Time{}, internal.NewInternalError("failed to load account", err)
	}

	if err := VerifyPassword(account.PasswordHash, dto.Password); err != nil {
		s.logger.Info("login rejected: bad password", "user_id", account.ID)
		return nil, "", time.Time{}, internal.ErrInvalidCredentials
	}

	if !account.IsActive {
		s.logger.Info("login rejected: inactive user", "user_id", account.ID)
		return nil, "", time.Time{}, internal.ErrUserInactive
	}

	return s.issue(account)
}

// ChangePassword verifies the current password, stores the new hash, clears
// the must-change flag and reissues the session so the flag drops at once.
func (s *Service) ChangePassword(ctx context.Context, sess *Session, dto ChangePasswordDTO) (*Session, string, time.Time, error) {
	if sess == nil {
		return nil, "", time.Time{}, internal.ErrUnauthenticated
	}
	if verr := dto.Validate(); verr != nil {
		return nil, "", time.Time{}, verr
	}

	account, err := s.repo.FindAccountByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, "", time.Time{}, internal.ErrUnauthenticated
		}
		return nil, "", time.Time{}, internal.NewInternalError("failed to load account", err)
	}

	if err := VerifyPassword(account.PasswordHash, dto.CurrentPassword); err != nil {
		return nil, "", time.Time{}, internal.NewValidationFieldError("currentPassword", "current password is incorrect", internal.ErrCodeInvalidCredentials)
	}

	hash, err := HashPassword(dto.NewPassword, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, internal.NewInternalError("failed to hash password", err)
	}

	if err := s.repo.UpdatePassword(ctx, account.ID, hash, false); err != nil {
		s.logger.Error("failed to update password", "error", err, "user_id", account.ID)
		return nil, "", time.Time{}, internal.NewInternalError("failed to update password", err)
	}

	s.logger.Info("password changed", "user_id", account.ID)

	account.MustChangePassword = false
	account.PasswordHash = hash
	return s.issue(account)
}

// Authenticate validates a session token. When the snapshot is older than
// the max age it is rebuilt from the store and a new token is returned;
// otherwise the returned token is empty.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, string, time.Time, error) {
	if token == "" {
		return nil, "", time.Time{}, internal.ErrUnauthenticated
	}

	sess, err := s.tokens.Validate(token)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	if !sess.Stale(s.snapshotMaxAge, s.now()) {
		return sess, "", time.Time{}, nil
	}

	account, err := s.repo.FindAccountByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, "", time.Time{}, internal.ErrUnauthenticated
		}
		return nil, "", time.Time{}, internal.NewInternalError("failed to refresh session", err)
	}
	if !account.IsActive {
		return nil, "", time.Time{}, internal.ErrUserInactive
	}

	s.logger.Debug("session snapshot refreshed", "user_id", account.ID, "role", account.RoleName)
	return s.issue(account)
}

func (s *Service) issue(account *Account) (*Session, string, time.Time, error) {
	sess := account.Snapshot(s.now())
	token, expiresAt, err := s.tokens.Generate(sess)
	if err != nil {
		s.logger.Error("failed to sign session", "error", err, "user_id", account.ID)
		return nil, "", time.Time{}, internal.NewInternalError("failed to create session", err)
	}
	return sess, token, expiresAt, nil
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
