// Package registry holds the write-once table of loaded API modules.
//
// Build takes descriptors in discovery order; duplicate names resolve to the
// last one discovered. The table may be mirrored into an externally owned
// registry through the Mirror interface.
package registry
