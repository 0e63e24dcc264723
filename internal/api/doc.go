// Package api is the HTTP surface of the engine. It exposes the enqueue
// boundary for link jobs, the status mirroring endpoints, link lookup and
// removal, dead-letter administration and a health probe. Handlers translate
// HTTP to LinkService calls and map service errors to status codes without
// echoing internal messages.
package api
