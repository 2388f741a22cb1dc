package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/transport"
	"github.com/frahmantamala/expense-reporting/pkg/logger"
)

const SessionCookieName = "session"

type Handler struct {
	*transport.BaseHandler
	Service      ServiceAPI
	SecureCookie bool
}

func NewHandler(svc ServiceAPI, secureCookie bool, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:  transport.NewBaseHandler(lg),
		Service:      svc,
		SecureCookie: secureCookie,
	}
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, token, expiresAt, err := h.Service.Login(r.Context(), dto, transport.ClientIP(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, token, expiresAt)
	h.Logger.Info("login succeeded", "user_id", sess.UserID, "role", sess.RoleName)
	h.WriteJSON(w, http.StatusOK, SessionResponse{User: sess, ExpiresAt: expiresAt.UTC().Format(time.RFC3339)})
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrUnauthenticated)
		return
	}
	h.WriteJSON(w, http.StatusOK, SessionResponse{User: sess})
}

// ChangePassword handles POST /auth/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrUnauthenticated)
		return
	}

	var dto ChangePasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fresh, token, expiresAt, err := h.Service.ChangePassword(r.Context(), sess, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, token, expiresAt)
	h.WriteJSON(w, http.StatusOK, SessionResponse{User: fresh, ExpiresAt: expiresAt.UTC().Format(time.RFC3339)})
}

// SessionMiddleware resolves the session from the cookie or a bearer token.
// Requests without a valid session are rejected with 401.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			if c, err := r.Cookie(SessionCookieName); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			h.HandleServiceError(w, internal.ErrUnauthenticated)
			return
		}

		sess, refreshed, expiresAt, err := h.Service.Authenticate(r.Context(), token)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		if refreshed != "" {
			h.setSessionCookie(w, refreshed, expiresAt)
		}

		ctx := ContextWithSession(r.Context(), sess)
		ctx = logger.With(ctx, "user_id", sess.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePasswordCurrent blocks every route it wraps while the session
// carries the must-change-password flag.
func (h *Handler) RequirePasswordCurrent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			h.HandleServiceError(w, internal.ErrUnauthenticated)
			return
		}
		if sess.MustChangePassword {
			h.HandleServiceError(w, internal.ErrPasswordChangeRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
