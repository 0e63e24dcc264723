// Package store defines the persistence contracts of the link engine: the
// link registry and the user-mapping cache. Implementations live under
// internal/platform; business code depends only on these interfaces.
package store
