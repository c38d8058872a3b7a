/*
Package module defines the contract between the server and pluggable API
modules.

A module is a Descriptor: static Config (a route name plus optional
description and tags) and an Initialize function run once per request to
GET /api/<name>. Descriptors come from loaders (JavaScript files, declarative
YAML/TOML scrapers) or are compiled in with New.

# Responses

Initialize receives a Context whose Response buffers everything the module
sends. The first JSON call is pretty-printed with two-space indentation and
Content-Type application/json; any later JSON call uses the compact encoder.
The buffer is flushed by the dispatcher on success, or replaced by the fixed
error body on failure:

	{"error":"An error occurred"}

# Validation

Validate accepts a descriptor when it has a non-empty name matching a single
URL path segment and an initialize capability. Everything else wraps
ErrInvalidDescriptor and is skipped during discovery.
*/
package module
