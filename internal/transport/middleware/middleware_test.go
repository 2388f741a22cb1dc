package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

var _ = Describe("RequestID", func() {
	It("mints a trace id and exposes it through chi", func() {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = chiMiddleware.GetReqID(r.Context())
		}))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(seen).NotTo(BeEmpty())
		Expect(w.Header().Get(TraceHeader)).To(Equal(seen))
	})

	It("keeps the caller's trace id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, "abc-123")
		w := httptest.NewRecorder()

		RequestID(ok).ServeHTTP(w, req)

		Expect(w.Header().Get(TraceHeader)).To(Equal("abc-123"))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("answers 500 without leaking the panic value", func() {
		h := RecoveryMiddleware(silentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("db password is hunter2")
		}))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).NotTo(ContainSubstring("hunter2"))
		var resp internal.Response
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Error).NotTo(BeNil())
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("passes the request body through untouched", func() {
		var got []byte
		h := LoggingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":1}`))
		}))
		body := `{"email":"a@example.com","password":"secret123"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		Expect(string(got)).To(Equal(body))
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(w.Body.String()).To(Equal(`{"id":1}`))
	})

	It("masks sensitive fields at any depth", func() {
		out := filterSensitiveBody([]byte(`{"email":"a@example.com","password":"x","nested":[{"newPassword":"y"}]}`))

		Expect(out).To(ContainSubstring(`"email":"a@example.com"`))
		Expect(out).NotTo(ContainSubstring(`"x"`))
		Expect(out).NotTo(ContainSubstring(`"y"`))
		Expect(out).To(ContainSubstring(filtered))
	})

	It("masks credentials in headers", func() {
		h := http.Header{}
		h.Set("Authorization", "Bearer t")
		h.Set("Cookie", "session=abc")
		h.Set("Accept", "application/json")

		out := filterSensitiveHeaders(h)

		Expect(out["Authorization"]).To(Equal(filtered))
		Expect(out["Cookie"]).To(Equal(filtered))
		Expect(out["Accept"]).To(Equal("application/json"))
	})

	It("never echoes a body it cannot parse", func() {
		Expect(filterSensitiveBody([]byte(`{"password":"trunc`))).To(Equal("[UNPARSED BODY]"))
	})
})

var _ = Describe("RateLimiter", func() {
	It("rejects once the budget is spent and says when to retry", func() {
		rl, err := NewRateLimiter("action", "2-M", silentLogger())
		Expect(err).NotTo(HaveOccurred())
		h := rl.Handler(ok)

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

		Expect(w.Code).To(Equal(http.StatusTooManyRequests))
		Expect(w.Header().Get("Retry-After")).NotTo(BeEmpty())
		Expect(w.Header().Get("X-RateLimit-Remaining")).To(Equal("0"))
		Expect(w.Body.String()).To(ContainSubstring("RATE_LIMITED"))
	})

	It("budgets each user separately", func() {
		rl, err := NewRateLimiter("action", "1-M", silentLogger())
		Expect(err).NotTo(HaveOccurred())
		h := rl.Handler(ok)
		as := func(id int64) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			return req.WithContext(auth.ContextWithSession(req.Context(), &auth.Session{UserID: id}))
		}

		w := httptest.NewRecorder()
		h.ServeHTTP(w, as(1))
		Expect(w.Code).To(Equal(http.StatusOK))

		w = httptest.NewRecorder()
		h.ServeHTTP(w, as(2))
		Expect(w.Code).To(Equal(http.StatusOK))

		w = httptest.NewRecorder()
		h.ServeHTTP(w, as(1))
		Expect(w.Code).To(Equal(http.StatusTooManyRequests))
	})

	It("refuses a malformed rate", func() {
		_, err := NewRateLimiter("read", "lots", silentLogger())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Metrics", func() {
	It("labels requests by route pattern", func() {
		r := chi.NewRouter()
		r.Use(Metrics)
		r.Get("/expenses/{id}", ok)
		before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/expenses/{id}", "200"))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/expenses/7", nil))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/expenses/8", nil))

		after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/expenses/{id}", "200"))
		Expect(after - before).To(Equal(2.0))
	})
})

var _ = Describe("CORS", func() {
	handler := CORS("http://localhost:5173, https://expenses.example.com/")(ok)

	It("reflects a listed origin with credentials", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://expenses.example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://expenses.example.com"))
		Expect(w.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})

	It("ignores unknown origins", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})

	It("short-circuits preflight", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/expenses", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:5173"))
		Expect(w.Header().Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
		Expect(w.Body.String()).To(BeEmpty())
	})
})
