// Package config provides 12-factor configuration for the scraper API server.
//
// Configuration is loaded from environment variables with defaults. A .env
// file may seed the environment first (LoadDotEnv) and CLI flags override
// both.
//
// Configuration Sections:
//   - Server: listener address and shutdown grace period
//   - Modules: discovery directory, file pattern and load policy
//   - Sandbox: JavaScript runtime pool size, timeout and stack limit
//   - Fetch: outbound HTTP client used by modules
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//   - Compression: gzip response encoding
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - MODULES_DIR, MODULES_PATTERN, MODULES_LOAD_POLICY
//   - SANDBOX_POOL_SIZE, SANDBOX_TIMEOUT, SANDBOX_MAX_CALL_STACK, SANDBOX_CONSOLE
//   - FETCH_TIMEOUT, FETCH_RETRIES, FETCH_RPS, FETCH_USER_AGENT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - COMPRESSION_ENABLED, COMPRESSION_MIN_SIZE
package config
