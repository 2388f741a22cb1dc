package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	"github.com/frahmantamala/expense-reporting/internal/transport"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiter throttles requests per authenticated user, falling back to
// the client address before a session exists. Each RateLimiter keeps its
// own in-memory counters, so actions and reads are budgeted separately.
type RateLimiter struct {
	*transport.BaseHandler
	name    string
	limiter *limiter.Limiter
}

// NewRateLimiter parses a formatted rate such as "30-M".
func NewRateLimiter(name, formatted string, logger *slog.Logger) (*RateLimiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		BaseHandler: transport.NewBaseHandler(logger),
		name:        name,
		limiter:     limiter.New(memory.NewStore(), rate),
	}, nil
}

func (rl *RateLimiter) key(r *http.Request) string {
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		return rl.name + ":user:" + strconv.FormatInt(sess.UserID, 10)
	}
	return rl.name + ":ip:" + transport.ClientIP(r)
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lctx, err := rl.limiter.Get(r.Context(), rl.key(r))
		if err != nil {
			// the memory store only fails on a cancelled context
			rl.Logger.ErrorContext(r.Context(), "rate limiter lookup failed", "limiter", rl.name, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := time.Until(time.Unix(lctx.Reset, 0))
			rl.Logger.WarnContext(r.Context(), "rate limit reached", "limiter", rl.name, "path", r.URL.Path)
			rl.HandleServiceError(w, internal.NewTooManyRequestsError("Too many requests, please slow down").
				WithDetails(map[string]int64{"retryAfterSeconds": int64(retryAfter.Seconds()) + 1}))
			return
		}

		next.ServeHTTP(w, r)
	})
}
