// Package http exposes the module registry over HTTP.
//
// Dispatcher mounts GET /api/<name> for every registered module and owns
// the per-request flow: build a module.Context, run Initialize with panics
// recovered, then either flush what the module buffered or answer 500 with
// the fixed body {"error":"An error occurred"}. Handlers serves the banner,
// health, catalog listing and metrics endpoints.
package http
