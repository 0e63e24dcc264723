// Package identity maps task-suite user identities to issue-tracker
// usernames. Lookups go through a persistent cache, then the task suite's
// user directory, then a string heuristic whose guesses are never cached.
package identity
