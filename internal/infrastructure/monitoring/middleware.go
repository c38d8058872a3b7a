package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection. Requests are
// labeled by route pattern so /api/<name> does not explode cardinality for
// unknown names.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start), int64(size))
	}
}

// Timer measures a module invocation.
type Timer struct {
	start   time.Time
	metrics *Metrics
	module  string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, module string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		module:  module,
	}
}

// Stop records the duration under status and returns it.
func (t *Timer) Stop(status string) time.Duration {
	duration := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.RecordModuleCall(t.module, status, duration)
	}
	return duration
}
