package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/phrazzld/bpm-api/internal/api/shared"
	"github.com/phrazzld/bpm-api/internal/platform/ratelimiter"
)

// RateLimit limits requests per authenticated user. Requests without a user
// in the context are keyed by remote address. A nil limiter disables limiting.
func RateLimit(limiter *ratelimiter.MapLimiter, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if user, ok := shared.GetUser(r.Context()); ok {
				key = user.ID.String()
			}

			t := now()
			if !limiter.Allow(key, t) {
				wait := limiter.RetryAfter(key, t)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests, "Too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
