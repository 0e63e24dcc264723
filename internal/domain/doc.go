// Package domain contains the entities shared by the link engine: the task
// link registry row, the link job queued for the worker, and the cached
// cross-system user mapping. It has no knowledge of storage or transport.
package domain
