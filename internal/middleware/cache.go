package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseStartKey = "response_start"

	// HeaderCache reports whether the reply came from the read cache.
	HeaderCache = "X-Cache"
	// HeaderResponseTime reports the handler time in milliseconds.
	HeaderResponseTime = "X-Response-Time-Ms"
)

// WithResponseMeta records the request start so handlers can report timing
// headers.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseStartKey, time.Now())
		c.Next()
	}
}

// SetCacheHit writes the cache and timing headers. It must be called before
// the body is written.
func SetCacheHit(c *gin.Context, hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.Header(HeaderCache, "HIT")
	} else {
		c.Header(HeaderCache, "MISS")
	}
	if start, ok := c.Get(responseStartKey); ok {
		if typed, ok := start.(time.Time); ok {
			c.Header(HeaderResponseTime, strconv.FormatInt(time.Since(typed).Milliseconds(), 10))
		}
	}
}
