package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/expense-reporting/internal/transport"
	"github.com/frahmantamala/expense-reporting/pkg/logger"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// maxLoggedBody caps how much of a JSON body is captured for the log.
const maxLoggedBody = 4 << 10

const filtered = "[FILTERED]"

// sensitiveFields are matched as substrings of lower-cased header and JSON keys.
var sensitiveFields = []string{
	"password",
	"token",
	"authorization",
	"cookie",
	"secret",
	"session",
	"credential",
}

// LoggingMiddleware logs each request and response through the request
// scoped logger. Only JSON bodies are logged, capped and with sensitive
// fields masked.
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lg := logger.From(r.Context())

			var reqBody []byte
			if isJSON(r.Header.Get("Content-Type")) && r.Body != nil {
				reqBody, _ = io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(reqBody), r.Body))
			}

			lg.InfoContext(r.Context(), "incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"client_ip", transport.ClientIP(r),
				"user_agent", r.UserAgent(),
				"headers", filterSensitiveHeaders(r.Header),
				"body", filterSensitiveBody(reqBody))

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			capture := &bytes.Buffer{}
			ww.Tee(&limitedWriter{buf: capture, max: maxLoggedBody})

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			var respBody string
			if isJSON(ww.Header().Get("Content-Type")) {
				respBody = filterSensitiveBody(capture.Bytes())
			}
			lg.Log(r.Context(), level, "response",
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", ww.BytesWritten(),
				"body", respBody)
		})
	}
}

type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if room := lw.max - lw.buf.Len(); room > 0 {
		if len(p) > room {
			lw.buf.Write(p[:room])
		} else {
			lw.buf.Write(p)
		}
	}
	return len(p), nil
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, f := range sensitiveFields {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = filtered
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// filterSensitiveBody masks sensitive keys in a JSON body. Bodies that do
// not parse (including truncated ones) are replaced entirely.
func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "[UNPARSED BODY]"
	}
	b, err := json.Marshal(filterSensitiveJSON(data))
	if err != nil {
		return "[UNPARSED BODY]"
	}
	return string(b)
}

func filterSensitiveJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				out[key] = filtered
				continue
			}
			out[key] = filterSensitiveJSON(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = filterSensitiveJSON(item)
		}
		return out
	default:
		return v
	}
}
