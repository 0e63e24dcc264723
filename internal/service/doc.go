// Package service contains the use cases behind the HTTP API and the CLI.
//
// LinkService is the enqueue boundary for link jobs and the home of status
// mirroring: it records task and tracker status changes on existing links,
// pushes task completion and edits to the linked issue, and removes links.
// It depends on store interfaces and small capability interfaces for the
// queue and the issue tracker, never on concrete infrastructure.
//
// Error handling:
//   - Expected conditions are returned as sentinels (ErrLinkNotFound,
//     domain.ErrInvalidJob, ErrTrackerSync) that callers check with errors.Is
//   - Unexpected failures are wrapped in LinkServiceError with the operation
//     that failed
//   - The API layer maps both to HTTP status codes
package service
