package identity_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/identity"
	"github.com/phrazzld/tasklink/internal/mocks"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolve_CacheHit(t *testing.T) {
	cache := mocks.NewMockUserMappingStore()
	cache.Mappings["ou_alice"] = &domain.UserMapping{TaskIdentity: "ou_alice", TrackerIdentity: "alice"}
	dir := &mocks.MockDirectory{}

	r := identity.NewResolver(cache, dir, discard())
	got, source, ok := r.ResolveWithSource(context.Background(), "ou_alice")

	require.True(t, ok)
	assert.Equal(t, "alice", got)
	assert.Equal(t, identity.SourceCache, source)
	assert.Zero(t, dir.CallCount())
}

func TestResolve_DirectoryResultIsCached(t *testing.T) {
	cache := mocks.NewMockUserMappingStore()
	dir := &mocks.MockDirectory{Users: map[string]*identity.DirectoryUser{
		"ou_alice": {Email: "alice@corp.example", DisplayName: "Alice"},
	}}
	r := identity.NewResolver(cache, dir, discard())

	got, ok := r.Resolve(context.Background(), "ou_alice")
	require.True(t, ok)
	assert.Equal(t, "alice", got)
	require.Contains(t, cache.Mappings, "ou_alice")
	assert.Equal(t, "Alice", cache.Mappings["ou_alice"].DisplayName)

	// Second resolution is served from the cache.
	_, _ = r.Resolve(context.Background(), "ou_alice")
	assert.Equal(t, 1, dir.CallCount())
}

func TestResolve_HeuristicFallbackIsNotCached(t *testing.T) {
	cache := mocks.NewMockUserMappingStore()
	dir := &mocks.MockDirectory{GetUserFn: func(ctx context.Context, id string) (*identity.DirectoryUser, error) {
		return nil, errors.New("directory down")
	}}
	r := identity.NewResolver(cache, dir, discard())

	got, source, ok := r.ResolveWithSource(context.Background(), "alice@corp.example")
	require.True(t, ok)
	assert.Equal(t, "alice", got)
	assert.Equal(t, identity.SourceHeuristic, source)
	assert.Empty(t, cache.Mappings)
	assert.Zero(t, cache.UpsertCalls)

	// Directory is asked again on the next call because nothing was cached.
	_, _ = r.Resolve(context.Background(), "alice@corp.example")
	assert.Equal(t, 2, dir.CallCount())
}

func TestResolve_DirectoryWithoutEmailFallsBack(t *testing.T) {
	cache := mocks.NewMockUserMappingStore()
	dir := &mocks.MockDirectory{Users: map[string]*identity.DirectoryUser{
		"bob.example": {DisplayName: "Bob"},
	}}
	r := identity.NewResolver(cache, dir, discard(), identity.WithEmailSuffix(".example"))

	got, source, ok := r.ResolveWithSource(context.Background(), "bob.example")
	require.True(t, ok)
	assert.Equal(t, "bob", got)
	assert.Equal(t, identity.SourceHeuristic, source)
	assert.Empty(t, cache.Mappings)
}

func TestResolve_CacheErrorTreatedAsMiss(t *testing.T) {
	cache := mocks.NewMockUserMappingStore()
	cache.GetFn = func(ctx context.Context, id string) (*domain.UserMapping, error) {
		return nil, errors.New("connection refused")
	}
	dir := &mocks.MockDirectory{Users: map[string]*identity.DirectoryUser{
		"ou_carol": {Email: "carol@corp.example"},
	}}
	r := identity.NewResolver(cache, dir, discard())

	got, source, ok := r.ResolveWithSource(context.Background(), "ou_carol")
	require.True(t, ok)
	assert.Equal(t, "carol", got)
	assert.Equal(t, identity.SourceDirectory, source)
}

func TestResolve_CacheWriteFailureStillResolves(t *testing.T) {
	cache := mocks.NewMockUserMappingStore()
	cache.UpsertFn = func(ctx context.Context, m *domain.UserMapping) error {
		return errors.New("read-only replica")
	}
	dir := &mocks.MockDirectory{Users: map[string]*identity.DirectoryUser{
		"ou_dan": {Email: "dan@corp.example"},
	}}
	r := identity.NewResolver(cache, dir, discard())

	got, ok := r.Resolve(context.Background(), "ou_dan")
	require.True(t, ok)
	assert.Equal(t, "dan", got)
}

func TestResolve_EmptyIdentity(t *testing.T) {
	r := identity.NewResolver(mocks.NewMockUserMappingStore(), nil, discard())
	_, ok := r.Resolve(context.Background(), "   ")
	assert.False(t, ok)
}

func TestResolveMany(t *testing.T) {
	cache := mocks.NewMockUserMappingStore()
	cache.Mappings["ou_alice"] = &domain.UserMapping{TaskIdentity: "ou_alice", TrackerIdentity: "alice"}
	dir := &mocks.MockDirectory{Users: map[string]*identity.DirectoryUser{
		"ou_bob": {Email: "bob@corp.example"},
	}}
	r := identity.NewResolver(cache, dir, discard(), identity.WithDirectoryConcurrency(2))

	got := r.ResolveMany(context.Background(), []string{"ou_alice", "ou_bob", "ou_bob", "", "erin@corp.example"})

	assert.Equal(t, map[string]string{
		"ou_alice":          "alice",
		"ou_bob":            "bob",
		"erin@corp.example": "erin",
	}, got)
	// Only the two misses reach the directory, the duplicate once.
	assert.ElementsMatch(t, []string{"ou_bob", "erin@corp.example"}, dir.Calls)
	assert.Contains(t, cache.Mappings, "ou_bob")
	assert.NotContains(t, cache.Mappings, "erin@corp.example")
}

func TestResolveMany_BatchCacheFailure(t *testing.T) {
	cache := mocks.NewMockUserMappingStore()
	cache.GetManyFn = func(ctx context.Context, ids []string) (map[string]*domain.UserMapping, error) {
		return nil, errors.New("timeout")
	}
	r := identity.NewResolver(cache, nil, discard())

	got := r.ResolveMany(context.Background(), []string{"frank@corp.example"})
	assert.Equal(t, map[string]string{"frank@corp.example": "frank"}, got)
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		identity string
		suffix   string
		want     string
		ok       bool
	}{
		{"alice@corp.example", "", "alice", true},
		{"alice@corp.example", "@corp.example", "alice", true},
		{"ALICE@CORP.EXAMPLE", "@corp.example", "ALICE", true},
		{"bob@other.example", "@corp.example", "bob", true},
		{"ou_7d8a6e6df7621556ce0d21922b676706", "", "ou_7d8a6e6df7621556ce0d21922b676706", true},
		{"alice@Corp.Example", "@CORP.example", "alice", true},
		{"@corp.example", "@corp.example", "", false},
		{"x", "@corp.example", "x", true},
		{"", "", "", false},
		// The Kelvin sign lowercases to a one-byte "k"; the suffix must not
		// cut into the middle of it.
		{"dir\u212a", "k", "dir\u212a", true},
	}
	for _, tt := range tests {
		got, ok := identity.Heuristic(tt.identity, tt.suffix)
		assert.Equal(t, tt.ok, ok, tt.identity)
		assert.Equal(t, tt.want, got, tt.identity)
		assert.True(t, utf8.ValidString(got), tt.identity)
	}
}
