package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanEnv blanks every variable a developer machine might export, so the
// cases below only see what they set.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"JWT_SECRET", "STORE_DRIVER", "SEAT_LOCK_DRIVER", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME",
		"REDIS_ADDR", "REDIS_HOST", "REDIS_PORT", "FEE_PER_HOUR", "APP_TIMEZONE", "RATE_LIMIT_BURST"} {
		t.Setenv(k, "")
	}
}

func TestRead_MemoryDriver(t *testing.T) {
	cleanEnv(t)
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("GRACE_PERIOD", "45m")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, err := Read(NewViper())
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, LockLocal, cfg.SeatLockDriver)
	assert.Empty(t, cfg.DB.Host)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 45*time.Minute, cfg.Policy.GracePeriod)
	assert.Equal(t, time.UTC, cfg.Policy.Location)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestRead_MySQLRequiresConnectionSettings(t *testing.T) {
	cleanEnv(t)
	t.Setenv("DB_HOST", "db")

	_, err := Read(NewViper())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DB_USER")
	assert.NotContains(t, err.Error(), "DB_HOST")

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "studyroom")
	cfg, err := Read(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "db", cfg.DB.Host)
	assert.Equal(t, 25, cfg.DB.MaxOpen)
}

func TestRead_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":    {"STORE_DRIVER": "postgres"},
		"unknown lock":     {"SEAT_LOCK_DRIVER": "etcd"},
		"bad fee":          {"FEE_PER_HOUR": "cheap"},
		"negative fee":     {"FEE_PER_HOUR": "-1"},
		"bad timezone":     {"APP_TIMEZONE": "Mars/Olympus"},
		"zero deduction":   {"NO_SHOW_DEDUCTION": "0"},
		"negative timeout": {"LEAVE_TIMEOUT": "-5m"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv("STORE_DRIVER", StoreMemory)
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Read(NewViper())
			assert.Error(t, err)
		})
	}
}

func TestRead_FeePerHour(t *testing.T) {
	cleanEnv(t)
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("FEE_PER_HOUR", "2.40")

	cfg, err := Read(NewViper())
	require.NoError(t, err)
	assert.True(t, cfg.Policy.FeePerHour.Equal(decimal.RequireFromString("2.4")))
}

func TestLoadRedisConfig_HostPortWins(t *testing.T) {
	cleanEnv(t)
	v := NewViper()
	assert.Equal(t, "localhost:6379", loadRedisConfig(v).Addr)

	v.Set("REDIS_ADDR", "cache:6379")
	v.Set("REDIS_HOST", "redis")
	assert.Equal(t, "cache:6379", loadRedisConfig(v).Addr, "host alone is ignored")

	v.Set("REDIS_PORT", "6380")
	assert.Equal(t, "redis:6380", loadRedisConfig(v).Addr)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	cleanEnv(t)
	v := NewViper()
	v.Set("RATE_LIMIT_CAPACITY", 0)
	v.Set("RATE_LIMIT_REFILL_TOKENS", -2)
	v.Set("RATE_LIMIT_REFILL_INTERVAL", 2*time.Second)
	v.Set("RATE_LIMIT_TTL", time.Second)

	rl := loadRateLimitConfig(v)
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, 10*time.Second, rl.TTL)

	v.Set("RATE_LIMIT_BURST", 5)
	assert.Equal(t, 5, loadRateLimitConfig(v).Capacity)
}

func TestLoadCatalogCacheConfig(t *testing.T) {
	v := NewViper()
	c := loadCatalogCacheConfig(v)
	assert.True(t, c.Enabled)
	assert.Equal(t, 30*time.Second, c.TTL)

	v.Set("CATALOG_CACHE_TTL", 0)
	assert.Equal(t, time.Second, loadCatalogCacheConfig(v).TTL)
}
