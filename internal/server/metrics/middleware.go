package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records RequestsTotal and RequestDuration for every request.
// Routes are labelled by their registered pattern so that ids in paths do
// not blow up cardinality; unmatched requests are labelled "unmatched".
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status()/100) + "xx"

		RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
