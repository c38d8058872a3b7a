/*
Package resilience provides a circuit breaker for outbound calls.

A Breaker starts closed and counts outcomes within a rolling window. When
Settings.Trip returns true after a failure it opens and rejects calls with
ErrCircuitOpen for the cooldown, then lets Settings.Probes requests through
half-open: enough consecutive successes close it, any failure reopens it.

Group keeps one breaker per key, which the fetch client uses per upstream
host so one failing site does not block the others.

	b := resilience.New("example.com", resilience.Settings{Cooldown: 10 * time.Second})
	body, err := resilience.Do(b, func() ([]byte, error) { return fetch(ctx) })
*/
package resilience
