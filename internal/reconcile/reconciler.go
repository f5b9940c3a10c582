// Package reconcile resolves disagreement between the locally cached profile
// and the authoritative server profile into a single "profile usable" answer.
//
// The cache answers first (the authoritative fetch is asynchronous and must
// not block startup); the server wins once it has answered. Completeness only
// ever upgrades within a session: a user known to have a complete profile is
// never routed back into intake because of a failed fetch or a momentary 404.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonathan/autoapply-client/internal/api"
	"github.com/jonathan/autoapply-client/internal/auth"
	"github.com/jonathan/autoapply-client/internal/types"
)

// ProfileService is the slice of the API client the reconciler consumes.
type ProfileService interface {
	FetchProfile(ctx context.Context, token, userID string) (*types.UserProfile, error)
	SaveProfile(ctx context.Context, token string, profile *types.UserProfile) error
}

// Cache is the local profile shadow.
type Cache interface {
	CachedProfile() (*types.UserProfile, error)
	CacheProfile(profile *types.UserProfile) error
}

// Reconciler merges the authoritative profile with the cached copy.
type Reconciler struct {
	svc    ProfileService
	tokens auth.TokenSource
	cache  Cache

	mu       sync.Mutex
	profile  *types.UserProfile
	complete bool

	now          func() time.Time
	refetchDelay time.Duration
	logf         func(format string, args ...any)
}

// Options tunes reconciler behavior; zero values select defaults.
type Options struct {
	Now             func() time.Time
	RefetchDelay    time.Duration // pause before the single 401 re-fetch
	TokenRetryDelay time.Duration // pause before the single no-token retry
	Logf            func(format string, args ...any)
}

// New builds a reconciler seeded from the cache. The cached isComplete flag
// is the provisional answer until Refresh hears from the server. The token
// source is wrapped with the single-retry policy so a transiently empty
// provider right after sign-in does not fail the fetch path outright.
func New(svc ProfileService, tokens auth.TokenSource, cache Cache, opts *Options) *Reconciler {
	tokenRetryDelay := auth.DefaultRetryDelay
	if opts != nil && opts.TokenRetryDelay > 0 {
		tokenRetryDelay = opts.TokenRetryDelay
	}
	r := &Reconciler{
		svc:          svc,
		tokens:       auth.WithRetry(tokens, tokenRetryDelay),
		cache:        cache,
		now:          time.Now,
		refetchDelay: 500 * time.Millisecond,
		logf:         log.Printf,
	}
	if opts != nil {
		if opts.Now != nil {
			r.now = opts.Now
		}
		if opts.RefetchDelay > 0 {
			r.refetchDelay = opts.RefetchDelay
		}
		if opts.Logf != nil {
			r.logf = opts.Logf
		}
	}
	if cached, err := cache.CachedProfile(); err != nil {
		r.logf("reconcile: ignoring unreadable profile cache: %v", err)
	} else if cached != nil {
		r.profile = cached
		r.complete = cached.IsComplete
	}
	return r
}

// HasUsableProfile reports whether the user has a complete profile according
// to the best currently available source. This is the only completeness
// signal; callers must not re-derive their own from the cache.
func (r *Reconciler) HasUsableProfile() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete
}

// Profile returns the best-known profile, or nil when neither the cache nor
// the server has one. The returned value is shared; callers must not mutate it.
func (r *Reconciler) Profile() *types.UserProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile
}

// Refresh fetches the authoritative profile and folds it into the reconciled
// state. Failures are transient by policy: a fetch error or a 404 leaves the
// previous state untouched. A 401 is retried exactly once with a fresh token
// before being surfaced.
func (r *Reconciler) Refresh(ctx context.Context, userID string) error {
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}

	profile, err := r.svc.FetchProfile(ctx, token, userID)
	if api.IsAuthRequired(err) {
		// The token may have gone stale between retrieval and use.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.refetchDelay):
		}
		token, err = r.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("fetch profile: %w", err)
		}
		profile, err = r.svc.FetchProfile(ctx, token, userID)
	}
	if api.IsNotFound(err) {
		// No profile yet. A previously cached complete profile is trusted
		// over a momentary client/server inconsistency.
		return nil
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.profile = profile
	if profile.IsComplete {
		r.complete = true
	}
	r.mu.Unlock()

	if err := r.cache.CacheProfile(profile); err != nil {
		r.logf("reconcile: failed to cache profile: %v", err)
	}
	return nil
}

// Save validates the profile, writes it to the server, and only then updates
// the reconciled state and the cache. A failed save changes nothing locally.
// The saved record is marked complete with a fresh updatedAt.
func (r *Reconciler) Save(ctx context.Context, profile *types.UserProfile) (*types.UserProfile, error) {
	record := *profile
	record.IsComplete = true
	record.UpdatedAt = r.now().UnixMilli()
	if record.CreatedAt == 0 {
		record.CreatedAt = record.UpdatedAt
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("profile is incomplete: %w", err)
	}

	token, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	if err := r.svc.SaveProfile(ctx, token, &record); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.profile = &record
	r.complete = true
	r.mu.Unlock()

	if err := r.cache.CacheProfile(&record); err != nil {
		r.logf("reconcile: failed to cache profile: %v", err)
	}
	return &record, nil
}
