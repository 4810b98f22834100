package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eventreg/server/internal/api/problem"
	"github.com/eventreg/server/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	// TierPublic covers reads.
	TierPublic RateLimitTier = "public"
	// TierWrite covers creates, registrations and cancellations.
	TierWrite RateLimitTier = "write"
)

const (
	limiterTTL      = 15 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// exemptPaths are never limited so probes and scrapers keep working under load.
var exemptPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// RateLimit applies a per-client token bucket, with a separate budget for
// writes. The cleanup goroutine stops when ctx is done.
func RateLimit(ctx context.Context, cfg config.RateLimitConfig, env string) func(http.Handler) http.Handler {
	store := newLimiterStore(cfg)
	go store.cleanupLoop(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			tier := tierFor(r)
			limiter := store.limiter(tier, clientKey(r, cfg.TrustedProxyCIDRs))
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(store.retryAfterSeconds(tier)))
				problem.WriteStatus(w, r, http.StatusTooManyRequests, "Too many requests, please try again later", nil, env)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func tierFor(r *http.Request) RateLimitTier {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return TierPublic
	default:
		return TierWrite
	}
}

type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute map[RateLimitTier]int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(cfg config.RateLimitConfig) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*limiterEntry),
		perMinute: map[RateLimitTier]int{
			TierPublic: cfg.PublicPerMinute,
			TierWrite:  cfg.WritePerMinute,
		},
	}
}

// limiter returns nil when the tier is unlimited.
func (s *limiterStore) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := s.perMinute[tier]
	if limit <= 0 {
		return nil
	}

	lookup := string(tier) + ":" + key

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.limiters[lookup]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	// Burst of one minute's budget, refilled evenly across the minute.
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit)
	s.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (s *limiterStore) retryAfterSeconds(tier RateLimitTier) int {
	limit := s.perMinute[tier]
	if limit <= 0 {
		return 1
	}
	seconds := int(time.Minute / time.Duration(limit) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

func (s *limiterStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// cleanup drops limiters idle for longer than limiterTTL.
func (s *limiterStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterTTL {
			delete(s.limiters, key)
		}
	}
}

// clientKey identifies the caller by IP. X-Forwarded-For and X-Real-IP are
// honoured only when the direct peer is a trusted proxy.
func clientKey(r *http.Request, trustedProxyCIDRs []string) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if isTrustedProxy(remoteIP, trustedProxyCIDRs) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	return remoteIP
}

func isTrustedProxy(ip string, trustedCIDRs []string) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidrStr := range trustedCIDRs {
		_, cidr, err := net.ParseCIDR(cidrStr)
		if err != nil {
			continue
		}
		if cidr.Contains(parsedIP) {
			return true
		}
	}
	return false
}
