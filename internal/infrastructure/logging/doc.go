// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for humans
//
// Module code receives a child logger from Logger.Module so every line it
// writes carries the module name. Startup summaries go through Logger.Main,
// a printf-style sink at info level.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Main("Successfully loaded %s", "weather")
//	logger.Module("weather").Error("fetch failed", zap.Error(err))
package logging
