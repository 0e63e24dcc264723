// Package middleware contains the HTTP middleware of the API: request
// tracing and service-token authentication.
package middleware
