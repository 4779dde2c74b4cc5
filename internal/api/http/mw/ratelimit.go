package mw

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dexanalytics/internal/config"
	"dexanalytics/pkg/httputil"

	"github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

const defaultBucketTTL = 2 * time.Minute

// RateLimitMiddleware keeps one token bucket per client IP and one per JWT
// subject in Redis. Redis errors let the request through.
type RateLimitMiddleware struct {
	log   logger.Logger
	rdb   redis.Scripter
	byIP  config.RateBucket
	byJWT config.RateBucket
	now   func() time.Time
}

func NewRateLimit(log logger.Logger, rdb redis.Scripter, cfg *config.RateLimitConfig) (*RateLimitMiddleware, error) {
	if rdb == nil {
		return nil, errors.New("redis is required to the rate limiter")
	}
	if cfg == nil {
		return nil, errors.New("rate limit config is required")
	}

	m := &RateLimitMiddleware{log: log, rdb: rdb, byIP: cfg.ByIP, byJWT: cfg.ByJWT, now: time.Now}
	for _, b := range []*config.RateBucket{&m.byIP, &m.byJWT} {
		if b.TTL <= 0 {
			b.TTL = defaultBucketTTL
		}
		if b.Burst <= 0 {
			return nil, errors.New("rate limit burst must be positive")
		}
	}
	return m, nil
}

// Handler must run after the JWT middleware for the subject bucket to apply
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := m.now()

		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		blocked := (*config.RateBucket)(nil)
		if !m.allow(ctx, "rl:ip:"+ip, now, m.byIP) {
			blocked = &m.byIP
		} else if sub := SubjectFromContext(ctx); sub != "" && !m.allow(ctx, "rl:jwt:"+sub, now, m.byJWT) {
			blocked = &m.byJWT
		}

		if blocked != nil {
			w.Header().Set("Retry-After", retryAfter(*blocked))
			_ = httputil.Error(w, r, http.StatusTooManyRequests, httputil.CodeRateLimited, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// KEYS[1] bucket; ARGV now_ms, refill_per_sec, burst, ttl_sec -> {allowed, tokens_left}
var tokenBucket = redis.NewScript(`
local key   = KEYS[1]
local now   = tonumber(ARGV[1])
local rate  = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl   = tonumber(ARGV[4])

local last   = tonumber(redis.call('HGET', key, 'ts') or now)
local tokens = tonumber(redis.call('HGET', key, 'tok') or burst)

if now > last then
  tokens = math.min(burst, tokens + ((now - last) / 1000.0) * rate)
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', key, 'tok', tokens, 'ts', now)
redis.call('EXPIRE', key, ttl)
return {allowed, math.floor(tokens)}
`)

func (m *RateLimitMiddleware) allow(ctx context.Context, key string, now time.Time, b config.RateBucket) bool {
	res, err := tokenBucket.Run(ctx, m.rdb, []string{key},
		now.UnixMilli(),
		b.RefillPerSec,
		b.Burst,
		int64(b.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		m.log.Warnf("Rate limiter unavailable for %s, let request through: %v", key, err)
		return true
	}
	return len(res) > 0 && res[0] == 1
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// a bucket without refill only recovers when its key expires
func retryAfter(b config.RateBucket) string {
	if b.RefillPerSec <= 0 {
		return strconv.Itoa(int(b.TTL / time.Second))
	}
	return "1"
}
