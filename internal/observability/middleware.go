package observability

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	keyAddress = "memipc.address"
	keyLength  = "memipc.length"

	unmatchedRoute = "unmatched"
)

// TagMemoryAccess records the guest range an admin handler resolved so the
// access log can carry it.
func TagMemoryAccess(c *gin.Context, address uint32, n int) {
	c.Set(keyAddress, address)
	c.Set(keyLength, n)
}

// routeLabel is the registered route pattern. Unrouted paths collapse to one
// label so probing arbitrary URLs cannot grow the metric series.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}

// AccessLog writes one event per admin request. Memory routes add the
// address and length they touched; rejected or failed requests log above
// debug.
func AccessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status == 401 || status == 409:
			event = logger.Info()
		case status >= 400:
			event = logger.Warn()
		default:
			event = logger.Debug()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("route", routeLabel(c)).
			Int("status", status).
			Dur("duration", time.Since(start))
		if addr, ok := c.Get(keyAddress); ok {
			if a, ok := addr.(uint32); ok {
				event = event.Str("address", fmt.Sprintf("0x%08x", a))
			}
		}
		if n, ok := c.Get(keyLength); ok {
			event = event.Interface("length", n)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("admin request")
	}
}

// AccessMetrics feeds memipc_http_* keyed by route pattern.
func AccessMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}
