package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per IP address
// to the specified number per minute. Uses a sliding window algorithm.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitByCredential returns an HTTP middleware that limits requests per
// presented API-key token, falling back to the remote IP for requests with no
// credential. Keeps one noisy key from starving the rest.
func RateLimitByCredential(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if token, _, ok := r.BasicAuth(); ok && token != "" {
				return token, nil
			}
			return httprate.KeyByIP(r)
		}),
	)
}
