// Package server wires configuration, module discovery and the HTTP stack
// into a runnable server.
//
// Server Lifecycle:
//  1. Load configuration from environment, .env and flags
//  2. Discover modules and build the registry
//  3. Mirror the registry into the shared catalog and bind one route per module
//  4. Serve until the context is cancelled
//  5. Shut down within SHUTDOWN_TIMEOUT, then close module runtimes
//
// Middleware order: recovery, tracing, metrics, CORS, rate limiting; gzip
// compression wraps the whole router.
package server
