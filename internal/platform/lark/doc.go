// Package lark adapts the Lark (Feishu) open platform SDK to the calls the
// sync needs: user lookup in the contact directory and reading and patching
// task descriptions.
//
// The SDK fetches and caches the tenant access token from the app
// credentials. Rate limiting and server errors are retried here with
// exponential backoff up to the configured retry count, always inside the
// caller's deadline.
package lark
