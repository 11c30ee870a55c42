package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/intromatch-backend/internal/observability"
)

// Metrics records per-route request counts and latency. Unmatched paths are
// folded into one label so scanners cannot blow up cardinality.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.APIInflight(1)
		start := time.Now()
		defer func() {
			m.APIInflight(-1)
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveAPI(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		}()
		c.Next()
	}
}
