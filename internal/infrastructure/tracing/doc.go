/*
Package tracing provides lightweight request tracing.

Every HTTP request gets a span; module invocations open a child span of
their own. Completed spans are handed to a buffered collector that writes
them to the structured log, so a slow or failing module can be followed
from the request line to the script error.

# Usage

	tracer := tracing.New("scraperapi", logger.Logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "module weather")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

# Headers

  - X-Trace-ID: identifier for the entire request flow
  - X-Span-ID: identifier for the current operation
  - X-Request-ID: identifier for the inbound request

Incoming values are accepted only when short and made of [A-Za-z0-9_.-].
*/
package tracing
