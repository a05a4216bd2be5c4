package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
)

// WithResponseMeta seeds a metadata map on the request context and stamps
// the total processing time after the handler chain runs. Handlers add
// entries through SetCacheHit and read the map back via ExtractMeta.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
		meta := metaMap(c)
		if _, set := meta["processing_time_ms"]; !set {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit marks whether the response was served from cache. Safe to call
// even when WithResponseMeta is not installed.
func SetCacheHit(c *gin.Context, hit bool) {
	metaMap(c)[cacheHitKey] = hit
}

// ExtractMeta returns the response metadata collected so far, or nil when
// none was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if v, exists := c.Get(responseMetaKey); exists {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}

// metaMap fetches the metadata map, installing one when absent.
func metaMap(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if v, exists := c.Get(responseMetaKey); exists {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	m := make(map[string]interface{})
	c.Set(responseMetaKey, m)
	return m
}
