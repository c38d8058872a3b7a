// Package client is the outbound HTTP client modules use to fetch pages.
//
// It layers go-resty over a go-retryablehttp transport (retries with
// backoff on connection errors and 5xx), a process-wide token bucket from
// x/time/rate and a circuit breaker per upstream host. Responses are read
// fully; when the upstream omits Content-Type it is sniffed with mimetype.
//
// Example Usage:
//
//	c := client.New(client.DefaultConfig())
//	resp, err := c.Get(ctx, "https://news.ycombinator.com", nil)
package client
