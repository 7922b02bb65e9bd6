package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Keys written into the envelope meta object.
const (
	MetaCacheHit       = "cache_hit"
	MetaProcessingTime = "processing_time_ms"
	MetaScope          = "scope"
)

const (
	responseMetaKey = "response_meta"
	requestStartKey = "request_start"
)

// WithResponseMeta gives every request an empty meta map and remembers when it started.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetMeta stores one meta value for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	metaMap(c)[key] = value
}

// SetCacheHit marks whether an aggregate came from the cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, MetaCacheHit, hit)
}

// SetScope records the role whose visibility rules shaped the payload.
func SetScope(c *gin.Context, role string) {
	if role != "" {
		SetMeta(c, MetaScope, role)
	}
}

// FinalMeta copies the collected meta and stamps the processing time. The request start recorded by
// WithResponseMeta wins over fallback.
func FinalMeta(c *gin.Context, fallback time.Time) map[string]interface{} {
	src := metaMap(c)
	out := make(map[string]interface{}, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	start := fallback
	if v, ok := c.Get(requestStartKey); ok {
		if t, ok := v.(time.Time); ok {
			start = t
		}
	}
	out[MetaProcessingTime] = time.Since(start).Milliseconds()
	return out
}

func metaMap(c *gin.Context) map[string]interface{} {
	if v, ok := c.Get(responseMetaKey); ok {
		if meta, ok := v.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := map[string]interface{}{}
	c.Set(responseMetaKey, meta)
	return meta
}
