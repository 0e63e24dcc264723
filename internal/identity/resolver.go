package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/store"
)

// ErrUserNotFound is returned by a Directory that has no such user.
var ErrUserNotFound = errors.New("directory user not found")

// DirectoryUser is the subset of a task-suite user profile the resolver needs.
type DirectoryUser struct {
	Email       string
	DisplayName string
}

// Directory looks up users in the task suite.
type Directory interface {
	GetUser(ctx context.Context, taskIdentity string) (*DirectoryUser, error)
}

// Source records which step of the chain produced a resolution.
type Source string

// Resolution sources
const (
	SourceCache     Source = "cache"
	SourceDirectory Source = "directory"
	SourceHeuristic Source = "heuristic"
)

// defaultDirectoryConcurrency bounds parallel directory calls in ResolveMany.
const defaultDirectoryConcurrency = 4

// Resolver implements the cache, directory, heuristic chain.
type Resolver struct {
	cache       store.UserMappingStore
	directory   Directory
	emailSuffix string
	concurrency int
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEmailSuffix sets the organisation email suffix (for example
// "@corp.example") stripped by the heuristic.
func WithEmailSuffix(suffix string) Option {
	return func(r *Resolver) { r.emailSuffix = suffix }
}

// WithDirectoryConcurrency bounds parallel directory lookups in ResolveMany.
func WithDirectoryConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewResolver creates a Resolver. directory may be nil, in which case
// cache misses go straight to the heuristic.
func NewResolver(cache store.UserMappingStore, directory Directory, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		cache:       cache,
		directory:   directory,
		concurrency: defaultDirectoryConcurrency,
		logger:      logger.With("component", "identity_resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the tracker identity for taskIdentity. The boolean is
// false when nothing could be derived.
func (r *Resolver) Resolve(ctx context.Context, taskIdentity string) (string, bool) {
	trackerIdentity, _, ok := r.ResolveWithSource(ctx, taskIdentity)
	return trackerIdentity, ok
}

// ResolveWithSource is Resolve that also reports which step answered.
func (r *Resolver) ResolveWithSource(ctx context.Context, taskIdentity string) (string, Source, bool) {
	taskIdentity = strings.TrimSpace(taskIdentity)
	if taskIdentity == "" {
		return "", "", false
	}

	log := logger.FromContextOr(ctx, r.logger)

	m, err := r.cache.Get(ctx, taskIdentity)
	switch {
	case err == nil:
		return m.TrackerIdentity, SourceCache, true
	case !errors.Is(err, store.ErrUserMappingNotFound):
		log.Warn("user mapping cache lookup failed, treating as miss",
			"task_identity", taskIdentity, "error", err)
	}

	return r.resolveMiss(ctx, taskIdentity)
}

// ResolveMany resolves a list of identities. Duplicates are looked up once,
// cache hits come from a single batch read, and only misses reach the
// directory. Identities that resolve to nothing are absent from the result.
func (r *Resolver) ResolveMany(ctx context.Context, taskIdentities []string) map[string]string {
	log := logger.FromContextOr(ctx, r.logger)

	unique := make([]string, 0, len(taskIdentities))
	seen := make(map[string]struct{}, len(taskIdentities))
	for _, id := range taskIdentities {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	resolved := make(map[string]string, len(unique))
	if len(unique) == 0 {
		return resolved
	}

	cached, err := r.cache.GetMany(ctx, unique)
	if err != nil {
		log.Warn("batch user mapping lookup failed, treating all as misses",
			"count", len(unique), "error", err)
		cached = nil
	}

	var misses []string
	for _, id := range unique {
		if m, ok := cached[id]; ok {
			resolved[id] = m.TrackerIdentity
			continue
		}
		misses = append(misses, id)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range misses {
		id := id
		g.Go(func() error {
			if trackerIdentity, _, ok := r.resolveMiss(gctx, id); ok {
				mu.Lock()
				resolved[id] = trackerIdentity
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Debug("resolved identities",
		"requested", len(unique), "cache_hits", len(unique)-len(misses), "resolved", len(resolved))
	return resolved
}

// resolveMiss runs the directory and heuristic steps.
func (r *Resolver) resolveMiss(ctx context.Context, taskIdentity string) (string, Source, bool) {
	log := logger.FromContextOr(ctx, r.logger)

	if r.directory != nil {
		user, err := r.directory.GetUser(ctx, taskIdentity)
		switch {
		case err != nil:
			log.Warn("directory lookup failed, using heuristic",
				"task_identity", taskIdentity, "error", err)
		case user == nil || localPart(user.Email) == "":
			log.Info("directory has no email for user, using heuristic", "task_identity", taskIdentity)
		default:
			trackerIdentity := localPart(user.Email)
			mapping := &domain.UserMapping{
				TaskIdentity:    taskIdentity,
				TrackerIdentity: trackerIdentity,
				DisplayName:     user.DisplayName,
			}
			if err := r.cache.Upsert(ctx, mapping); err != nil {
				log.Warn("failed to cache user mapping",
					"task_identity", taskIdentity, "error", err)
			}
			return trackerIdentity, SourceDirectory, true
		}
	}

	if guess, ok := Heuristic(taskIdentity, r.emailSuffix); ok {
		log.Info("identity resolved by heuristic",
			"task_identity", taskIdentity, "tracker_identity", guess)
		return guess, SourceHeuristic, true
	}

	return "", "", false
}

// Heuristic guesses a tracker identity from the identity string alone. It
// strips suffix when present, else takes the text before '@', else returns
// the trimmed value unchanged.
func Heuristic(taskIdentity, suffix string) (string, bool) {
	id := strings.TrimSpace(taskIdentity)
	if suffix != "" && len(id) >= len(suffix) && strings.EqualFold(id[len(id)-len(suffix):], suffix) {
		id = id[:len(id)-len(suffix)]
	} else if at := strings.IndexByte(id, '@'); at >= 0 {
		id = id[:at]
	}
	id = strings.TrimSpace(id)
	return id, id != ""
}

func localPart(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.IndexByte(email, '@'); at >= 0 {
		return strings.TrimSpace(email[:at])
	}
	return ""
}
