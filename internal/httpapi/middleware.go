package httpapi

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joelkehle/cip-designer/internal/logging"
	"github.com/joelkehle/cip-designer/internal/telemetry"
)

type middleware func(http.HandlerFunc) http.HandlerFunc

// chain applies middleware in order; the first one is outermost.
func chain(h http.HandlerFunc, mws ...middleware) http.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests tags each request with an X-Request-ID (reusing the caller's
// when present) and records status and latency.
func logRequests(log *logging.Logger, metrics *telemetry.Metrics) middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next(rec, r)

			elapsed := time.Since(start)
			metrics.ObserveHTTP(routeLabel(r.URL.Path), r.Method, rec.status, elapsed)
			log.Info("request completed",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"latency_ms", elapsed.Milliseconds(),
			)
		}
	}
}

// routeLabel collapses design ids so metric cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case path == "/health", path == "/metrics", path == "/api/design", path == "/api/design/cip",
		path == "/api/catalog", path == "/api/ai/chat", path == "/api/ai/validate":
		return path
	case strings.HasPrefix(path, "/api/design/") && strings.HasSuffix(path, "/export"):
		return "/api/design/{id}/export"
	case strings.HasPrefix(path, "/api/design/"):
		return "/api/design/{id}"
	default:
		return "other"
	}
}

// cors answers preflight requests and echoes allowed origins. A "*" entry
// allows any origin.
func cors(allowed []string) middleware {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			set[o] = struct{}{}
		}
	}
	_, anyOrigin := set["*"]
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := set[origin]; ok || anyOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
					w.Header().Add("Vary", "Origin")
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next(w, r)
		}
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client key. Buckets idle for
// longer than idleTTL are swept on access.
type rateLimiter struct {
	mu        sync.Mutex
	perMinute int
	buckets   map[string]*limiterEntry
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &rateLimiter{
		perMinute: perMinute,
		buckets:   map[string]*limiterEntry{},
		idleTTL:   10 * time.Minute,
		now:       time.Now,
	}
}

// allow reports whether key may proceed and, if not, how long to wait.
func (rl *rateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.idleTTL {
		for k, e := range rl.buckets {
			if now.Sub(e.lastSeen) > rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	e, ok := rl.buckets[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMinute)), rl.perMinute)}
		rl.buckets[key] = e
	}
	e.lastSeen = now
	if e.limiter.AllowN(now, 1) {
		return true, 0
	}
	res := e.limiter.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	res.CancelAt(now)
	return false, delay
}

func rateLimit(rl *rateLimiter, log *logging.Logger) middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if rl == nil {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			ok, retryAfter := rl.allow(key)
			if ok {
				next(w, r)
				return
			}
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			log.Warn("rate limit exceeded", "key", key, "path", r.URL.Path, "retry_after", secs)
			e := newError(CodeRateLimited, "too many requests, please try again later")
			e.RetryAfter = secs
			writeError(w, log, e)
		}
	}
}

// clientIP uses the leftmost X-Forwarded-For address when it parses, else
// the connection's remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host
}
