package app

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/app/apiresp"
)

const operatorCodeHeader = "X-Operator-Code"

type rateBucket struct {
	Count      int
	WindowEnds time.Time
}

type IPRateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	store  map[string]rateBucket
}

func NewIPRateLimiter(max int, window time.Duration) *IPRateLimiter {
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &IPRateLimiter{
		max:    max,
		window: window,
		store:  make(map[string]rateBucket),
	}
}

func (l *IPRateLimiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.store[key]
	if now.After(b.WindowEnds) {
		b = rateBucket{Count: 0, WindowEnds: now.Add(l.window)}
	}
	if b.Count >= l.max {
		l.store[key] = b
		return false
	}
	b.Count++
	l.store[key] = b
	return true
}

func RateLimitMiddleware(l *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := strings.TrimSpace(r.RemoteAddr)
			key := ip + "|" + r.Method + "|" + r.URL.Path
			if !l.Allow(key) {
				apiresp.WriteError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OperatorGate hashes the configured access code once and checks the
// X-Operator-Code header against it per request. An empty code disables the
// gate entirely (single-machine dev mode).
type OperatorGate struct {
	hash []byte
}

func NewOperatorGate(code string) (*OperatorGate, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return &OperatorGate{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &OperatorGate{hash: hash}, nil
}

func (g *OperatorGate) Enabled() bool {
	return len(g.hash) > 0
}

func (g *OperatorGate) Check(code string) bool {
	if !g.Enabled() {
		return true
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(strings.TrimSpace(code))) == nil
}

func (g *OperatorGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Check(r.Header.Get(operatorCodeHeader)) {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "operator code required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
