// Package middleware provides the HTTP middleware stack: request IDs,
// request-scoped logging and Prometheus metrics.
package middleware

// contextKey is a private type for context values set by this package.
type contextKey string
