package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/study-room-reservation/internal/config"
	"github.com/iliyamo/study-room-reservation/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"user": currentUserID(c), "role": c.Get("role")})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, uid uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))
	e.GET("/admin", whoami, JWTAuth(secret), RequireRole("ADMIN"))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", bearer(t, 7, "STUDENT"))
	rec := serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"7","role":"STUDENT"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", bearer(t, 7, "STUDENT"))
	assert.Equal(t, http.StatusForbidden, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", bearer(t, 100, "ADMIN"))
	assert.Equal(t, http.StatusOK, serve(e, req).Code)
}

func TestJWTAuth_Rejects(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	other, err := utils.NewAccessToken("another-secret", 7, "STUDENT", 5)
	require.NoError(t, err)
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 7, "role": "STUDENT", "exp": time.Now().Add(-time.Minute).Unix(),
	})
	expiredRaw, err := expired.SignedString([]byte(secret))
	require.NoError(t, err)
	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "STUDENT"})
	noSubRaw, err := noSub.SignedString([]byte(secret))
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":      "",
		"not bearer":   "Basic dXNlcjpwYXNz",
		"wrong secret": "Bearer " + other.Token,
		"expired":      "Bearer " + expiredRaw,
		"no subject":   "Bearer " + noSubRaw,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := serve(e, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"errorCode":"UNAUTHORIZED"`)
		})
	}
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, GetRequestID(c)) })

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = serve(e, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(RequestID(), RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway, "upstream") })

	serve(e, httptest.NewRequest(http.MethodGet, "/ok", nil))
	serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, 1, logs.FilterMessage("request completed").Len())
	errs := logs.FilterMessage("server error").All()
	require.Len(t, errs, 1)
	assert.Equal(t, int64(http.StatusBadGateway), errs[0].ContextMap()["status"])
	assert.Equal(t, "/boom", errs[0].ContextMap()["route"])
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute,
		TTL: 10 * time.Minute, KeyStrategy: "ip", Prefix: "rl",
	}
	e := echo.New()
	e.POST("/reservations", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, NewTokenBucket(cfg, rdb, zap.NewNop()))

	first := serve(e, httptest.NewRequest(http.MethodPost, "/reservations", nil))
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := serve(e, httptest.NewRequest(http.MethodPost, "/reservations", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), `"errorCode":"TOO_MANY_REQUESTS"`)
}

func TestTokenBucket_PassThrough(t *testing.T) {
	calls := 0
	h := func(c echo.Context) error { calls++; return c.NoContent(http.StatusOK) }

	e := echo.New()
	e.GET("/disabled", h, NewTokenBucket(config.RateLimitConfig{Enabled: false, Capacity: 1}, nil, nil))
	e.GET("/noredis", h, NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/disabled", nil)).Code)
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/noredis", nil)).Code)
	}
	assert.Equal(t, 6, calls)
}

func TestTokenBucket_RedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	core, logs := observer.New(zap.WarnLevel)
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Minute, Prefix: "rl"}
	e := echo.New()
	e.POST("/reservations", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, NewTokenBucket(cfg, rdb, zap.New(core)))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusCreated, serve(e, httptest.NewRequest(http.MethodPost, "/reservations", nil)).Code)
	}
	assert.Equal(t, 2, logs.FilterMessage("rate limiter unavailable, allowing request").Len())
}

func TestTokenBucket_PerReservationKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute,
		TTL: time.Minute, KeyStrategy: "reservation", Prefix: "rl",
	}
	e := echo.New()
	e.POST("/reservations/:id/check-in", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		JWTAuth(secret), NewTokenBucket(cfg, rdb, zap.NewNop()))

	checkIn := func(id string) int {
		req := httptest.NewRequest(http.MethodPost, "/reservations/"+id+"/check-in", nil)
		req.Header.Set("Authorization", bearer(t, 7, "STUDENT"))
		return serve(e, req).Code
	}
	assert.Equal(t, http.StatusOK, checkIn("1"))
	assert.Equal(t, http.StatusTooManyRequests, checkIn("1"))
	assert.Equal(t, http.StatusOK, checkIn("2"))
	assert.True(t, mr.Exists("rl:user:7:route:POST /reservations/:id/check-in:reservation:2"))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/reservations/9/leave", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.1.2.3")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/reservations/:id/leave")
	c.SetParamNames("id")
	c.SetParamValues("9")
	c.Set("user_id", float64(12))

	cfg := config.RateLimitConfig{Prefix: "rl"}
	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:12:route:POST /reservations/:id/leave", buildRateKey(cfg, c))
	cfg.KeyStrategy = "reservation"
	assert.Equal(t, "rl:user:12:route:POST /reservations/:id/leave:reservation:9", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.1.2.3", buildRateKey(cfg, c))
	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.1.2.3:user:12:route:POST /reservations/:id/leave", buildRateKey(cfg, c))
}
