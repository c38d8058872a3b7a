/*
Package monitoring provides Prometheus metrics for the API server.

Metrics live on a private registry so tests and multiple servers in one
process never collide on registration.

# Metrics

  - HTTP requests by route pattern (count, latency, response size)
  - Module invocations by name and outcome, with duration histograms
  - Module failures by error type (script, timeout, panic, ...)
  - Modules bound at startup and discovery errors
  - Go runtime, process and uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "weather")
	// ... run the module ...
	timer.Stop(monitoring.StatusSuccess)
*/
package monitoring
