/*
Package resilience provides a circuit breaker for calls to the session
registry backend.

The breaker has three states. Closed passes requests through and counts
failures. Open fails fast without touching the backend. Half-Open lets a
limited number of probe requests through to test recovery.

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed

Usage:

	breaker := resilience.New("session-registry", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	result, err := breaker.Execute(func() (interface{}, error) {
		return client.Call()
	})
*/
package resilience
