package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/study-room-reservation/internal/config"
	"github.com/iliyamo/study-room-reservation/internal/response"
)

// bucketScript takes one token from the bucket at KEYS[1]. Tokens refill
// continuously at rate tokens per millisecond up to capacity, so a client
// that backs off gets partial credit for the time it waited.
//
// ARGV: now_ms, capacity, rate_per_ms, ttl_ms.
// Returns {allowed, whole tokens left, ms until the next token}.
var bucketScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local seen = tonumber(redis.call('HGET', KEYS[1], 'seen_ms'))
if tokens == nil or seen == nil then
  tokens, seen = capacity, now
end
if now > seen then
  tokens = math.min(capacity, tokens + (now - seen) * rate)
end

local allowed, wait = 0, 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
elseif rate > 0 then
  wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'seen_ms', now)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, math.floor(tokens), wait}
`)

// NewTokenBucket limits mutating requests per key. It is a pass-through
// when rate limiting is disabled or Redis is not configured, and lets the
// request through when the script fails.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}
	rate := float64(cfg.RefillTokens) / float64(cfg.RefillInterval.Milliseconds())
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, strconv.FormatFloat(rate, 'f', -1, 64), cfg.TTL.Milliseconds(),
			).Int64Slice()
			if err != nil || len(res) != 3 {
				log.Warn("rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if res[0] == 1 {
				return next(c)
			}

			secs := int(math.Ceil(float64(res[2]) / 1000))
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Info("rate limited", zap.String("key", key), zap.Int("retry_after_s", secs))
			return response.Fail(c, http.StatusTooManyRequests, response.CodeTooManyRequests,
				fmt.Sprintf("too many requests, retry in %ds", secs))
		}
	}
}

// buildRateKey joins the configured identity parts. "reservation" keys by
// caller and the :id of the reservation being acted on, so retries against
// one booking do not use up the caller's budget for others.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := currentUserID(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	case "reservation":
		parts = append(parts, "user", uid, "route", route)
		if id := c.Param("id"); id != "" {
			parts = append(parts, "reservation", id)
		}
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}

// currentUserID renders the JWT subject for keys and logs.
func currentUserID(c echo.Context) string {
	switch t := c.Get("user_id").(type) {
	case string:
		if t != "" {
			return t
		}
	case float64:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case int:
		return strconv.Itoa(t)
	}
	return "anon"
}
