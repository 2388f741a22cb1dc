package transport

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/pkg/logger"
	"github.com/go-chi/chi"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a plain error response for transport level failures
// (bad JSON, bad path params) that never reached a service.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.WriteAppError(w, &internal.AppError{
		Type:       errorTypeFor(status),
		Code:       internal.ErrorCode(strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))),
		Message:    message,
		StatusCode: status,
	})
}

func (h *BaseHandler) WriteAppError(w http.ResponseWriter, appErr *internal.AppError) {
	if appErr.StatusCode == 0 {
		appErr.StatusCode = http.StatusInternalServerError
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		h.Logger.Error("http error", "status", appErr.StatusCode, "code", appErr.Code, "error", appErr.Error())
	} else {
		h.Logger.Warn("http error", "status", appErr.StatusCode, "code", appErr.Code, "message", appErr.GetDetailedMessage())
	}
	status, body := appErr.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// HandleServiceError renders service errors. Anything that is not an
// AppError becomes a 500 without leaking the cause.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		if appErr.Type == internal.ErrorTypeTooManyRequests {
			if d, ok := appErr.Details.(map[string]int64); ok {
				w.Header().Set("Retry-After", strconv.FormatInt(d["retryAfterSeconds"], 10))
			}
		}
		h.WriteAppError(w, appErr)
		return
	}
	h.WriteAppError(w, internal.NewInternalError("Internal server error", err))
}

// DecodeJSON decodes the request body, rejecting unknown fields.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// PathInt64 reads a positive integer chi URL parameter.
func (h *BaseHandler) PathInt64(r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}

// ClientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func errorTypeFor(status int) internal.ErrorType {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return internal.ErrorTypeValidation
	case http.StatusUnauthorized:
		return internal.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return internal.ErrorTypeForbidden
	case http.StatusNotFound:
		return internal.ErrorTypeNotFound
	case http.StatusConflict:
		return internal.ErrorTypeConflict
	case http.StatusTooManyRequests:
		return internal.ErrorTypeTooManyRequests
	default:
		return internal.ErrorTypeInternal
	}
}
