// Package queue defines the at-least-once job queue used to hand link jobs
// to the sync worker. A dequeued message stays leased (invisible) for the
// visibility timeout; if it is not acknowledged in time it becomes visible
// again and its read count grows on the next delivery.
//
// MemoryQueue implements the contract in process for tests and local runs.
// The durable implementation lives in internal/platform/postgres.
package queue
