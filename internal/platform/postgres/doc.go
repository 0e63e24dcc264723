// Package postgres implements the link registry, the user-mapping cache and
// the durable link-job queue on PostgreSQL, accessed through database/sql
// with the pgx driver. Schema changes ship as goose migrations embedded in
// the binary.
//
// The job queue leases rows with FOR UPDATE SKIP LOCKED, which makes the
// database the only mutual-exclusion point between worker processes.
package postgres
