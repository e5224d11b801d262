package config

import (
	"time"

	"github.com/spf13/viper"
)

// CatalogCacheConfig controls the Redis read-through cache in front of the
// seat catalog. It is disabled when Enabled is false or Redis is down.
type CatalogCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

func setCatalogCacheDefaults(v *viper.Viper) {
	v.SetDefault("CATALOG_CACHE_ENABLED", true)
	v.SetDefault("CATALOG_CACHE_TTL", 30*time.Second)
	v.SetDefault("CATALOG_CACHE_PREFIX", "catalog")
}

func loadCatalogCacheConfig(v *viper.Viper) CatalogCacheConfig {
	c := CatalogCacheConfig{
		Enabled: v.GetBool("CATALOG_CACHE_ENABLED"),
		TTL:     v.GetDuration("CATALOG_CACHE_TTL"),
		Prefix:  v.GetString("CATALOG_CACHE_PREFIX"),
	}
	if c.TTL <= 0 {
		c.TTL = time.Second
	}
	return c
}
