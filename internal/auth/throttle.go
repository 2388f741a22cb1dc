package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// LoginThrottle counts every login attempt, successful or not, per client
// address and email. The counters live in process memory.
type LoginThrottle struct {
	limiter *limiter.Limiter
}

func NewLoginThrottle(attempts int, window time.Duration) *LoginThrottle {
	rate := limiter.Rate{Period: window, Limit: int64(attempts)}
	return &LoginThrottle{limiter: limiter.New(memory.NewStore(), rate)}
}

// Attempt records one attempt and reports whether it is allowed. When it is
// not, retryAfter tells how long until the window resets.
func (t *LoginThrottle) Attempt(ctx context.Context, clientIP, email string) (allowed bool, retryAfter time.Duration, err error) {
	if t == nil {
		return true, 0, nil
	}
	if clientIP == "" {
		clientIP = "unknown"
	}
	if email == "" {
		email = "unknown"
	}
	key := fmt.Sprintf("login:%s:%s", clientIP, strings.ToLower(email))

	lctx, err := t.limiter.Get(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if lctx.Reached {
		return false, time.Until(time.Unix(lctx.Reset, 0)), nil
	}
	return true, 0, nil
}
