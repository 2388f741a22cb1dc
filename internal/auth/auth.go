package auth

import (
	"context"
	"time"
)

// Capabilities are the four independent role flags.
type Capabilities struct {
	CanSubmit  bool `json:"canSubmit"`
	CanApprove bool `json:"canApprove"`
	CanProcess bool `json:"canProcess"`
	IsAdmin    bool `json:"isAdmin"`
}

// Session is the capability snapshot taken from the user's role when the
// token is issued. It is not re-read per request; the session middleware
// refreshes it once IssuedAt is older than the configured max age.
type Session struct {
	UserID             int64     `json:"userId"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	RoleID             int64     `json:"roleId"`
	RoleName           string    `json:"roleName"`
	MustChangePassword bool      `json:"mustChangePassword"`
	IssuedAt           time.Time `json:"issuedAt"`
	Capabilities
}

// Stale reports whether the snapshot should be reloaded from the store.
func (s *Session) Stale(maxAge time.Duration, now time.Time) bool {
	if s == nil || maxAge <= 0 {
		return false
	}
	return now.Sub(s.IssuedAt) > maxAge
}

// Account is a user row joined with its role, as read by login and refresh.
type Account struct {
	ID                 int64
	Email              string
	Name               string
	PasswordHash       string
	IsActive           bool
	MustChangePassword bool
	RoleID             int64
	RoleName           string
	Capabilities
}

func (a *Account) Snapshot(now time.Time) *Session {
	return &Session{
		UserID:             a.ID,
		Email:              a.Email,
		Name:               a.Name,
		RoleID:             a.RoleID,
		RoleName:           a.RoleName,
		MustChangePassword: a.MustChangePassword,
		IssuedAt:           now,
		Capabilities:       a.Capabilities,
	}
}

type ctxKey string

const ContextSessionKey ctxKey = "session"

func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ContextSessionKey, s)
}

func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(ContextSessionKey).(*Session)
	return s, ok && s != nil
}
