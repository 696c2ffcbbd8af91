package middleware

import (
	"strconv"
	"time"

	"shop_checkout/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 记录每个路由的请求数与耗时；未匹配路由统一记为 unmatched。
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		m.Requests.WithLabelValues(handler, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	}
}
