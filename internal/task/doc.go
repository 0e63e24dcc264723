// Package task runs the sync worker that turns queued link jobs into tracker
// issues.
//
// A Worker drains the durable job queue on a timer. Each drain leases a
// batch under a visibility timeout and processes its jobs one at a time:
// jobs for tasks that already have a link are acknowledged, everything else
// gets an issue created through the glab CLI, a link row, and a best-effort
// backlink in the task description. A job that is not acknowledged becomes
// visible again once its lease lapses, and a job read MaxAttempts times is
// dropped into the dead-letter archive.
package task
