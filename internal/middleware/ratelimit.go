package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/agentmesh/platform/internal/httputil"
)

// PathLimiter enforces a per-path request rate limit. Requests over the
// limit receive 503 with Retry-After (spec.md §5 "HTTP edge applies a
// concurrency limit per path; over-limit requests receive 503 with
// Retry-After").
type PathLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewPathLimiter builds a limiter allowing r requests/sec with the given
// burst, tracked independently per request path.
func NewPathLimiter(r rate.Limit, burst int) *PathLimiter {
	return &PathLimiter{limiters: make(map[string]*rate.Limiter), r: r, burst: burst}
}

func (p *PathLimiter) limiterFor(path string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[path]
	if !ok {
		l = rate.NewLimiter(p.r, p.burst)
		p.limiters[path] = l
	}
	return l
}

// Middleware returns the mux.MiddlewareFunc enforcing the per-path limit.
func (p *PathLimiter) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := p.limiterFor(r.URL.Path)
			if !limiter.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				httputil.WriteError(w, http.StatusServiceUnavailable, "rate_limited", "too many requests for this path")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
