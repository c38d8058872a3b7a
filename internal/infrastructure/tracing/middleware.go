package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ScraperAPI/internal/shared/id"
)

// HTTPMiddleware starts a span per request. Incoming X-Trace-ID, X-Span-ID
// and X-Request-ID headers are honored when well formed; the request ID
// and the new span's IDs are echoed on the response.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		traceID, _ := id.Foreign(c.GetHeader(HeaderTraceID))
		parentID, _ := id.Foreign(c.GetHeader(HeaderSpanID))
		ctx = WithRemote(ctx, id.TraceID(traceID), id.SpanID(parentID))

		rid := id.NewRequestID()
		if v, ok := id.Foreign(c.GetHeader(HeaderRequestID)); ok {
			rid = id.RequestID(v)
		}
		ctx = WithRequestID(ctx, rid)

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.url", c.Request.URL.String())
		span.SetTag("request_id", rid.String())

		c.Request = c.Request.WithContext(ctx)
		c.Set("request_id", rid.String())

		c.Header(HeaderRequestID, rid.String())
		c.Header(HeaderTraceID, span.TraceID.String())
		c.Header(HeaderSpanID, span.SpanID.String())

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}

		span.Finish()
		tracer.Submit(span)
	}
}
