// Package main is the entry point for the ScraperAPI server.
//
// The server scans a modules directory at startup and exposes every module
// it finds as GET /api/<name>:
//
//	scraper/
//	  weather.js      -> GET /api/weather
//	  headlines.yaml  -> GET /api/headlines
//
// Configuration:
//   - Environment variables (12-factor), optionally from .env files
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Serve on :8000 from ./scraper
//	./server
//
//	# Different directory, keep going past broken modules
//	./server --modules-dir ./apis --load-policy skip --dev
//
//	# Validate modules without serving
//	./server modules
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
