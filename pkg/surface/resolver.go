package surface

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/cache"
)

// Policy decides what happens when a surface has no registered binding.
type Policy string

const (
	// PolicyDeny fails closed: unregistered surfaces are inaccessible.
	PolicyDeny Policy = "deny"
	// PolicyAllow fails open: unregistered surfaces are unrestricted.
	PolicyAllow Policy = "allow"
)

// Config holds resolver settings loadable from the environment.
type Config struct {
	DefaultPolicy Policy        `env:"SURFACE_DEFAULT_POLICY" envDefault:"deny"` // behavior for unregistered surfaces
	CacheSize     int           `env:"SURFACE_CACHE_SIZE" envDefault:"512"`      // binding cache capacity; 0 disables caching
	CacheTTL      time.Duration `env:"SURFACE_CACHE_TTL" envDefault:"30s"`       // binding cache entry lifetime
}

type lookupKey struct {
	tenantID uuid.UUID
	surface  string
}

// cached distinguishes "cached miss" from "not cached".
type cached struct {
	binding *Binding
	found   bool
}

// Resolver looks up surface bindings, with a small in-process cache in
// front of the store. It is read-only and safe for concurrent use.
type Resolver struct {
	store         BindingStore
	defaultPolicy Policy
	lookups       *cache.TTL[lookupKey, cached]
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDefaultPolicy sets the behavior for unregistered surfaces.
func WithDefaultPolicy(p Policy) ResolverOption {
	return func(r *Resolver) {
		switch p {
		case PolicyAllow, PolicyDeny:
			r.defaultPolicy = p
		default:
			panic(fmt.Sprintf("surface: invalid default policy %q", p))
		}
	}
}

// WithCache sizes the lookup cache. A zero capacity disables caching.
func WithCache(capacity int, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if capacity <= 0 {
			r.lookups = nil
			return
		}
		r.lookups = cache.NewTTL[lookupKey, cached](capacity, ttl)
	}
}

// NewResolver creates a Resolver over the given binding store. The
// default policy is deny and lookups are cached for 30 seconds.
func NewResolver(store BindingStore, opts ...ResolverOption) *Resolver {
	if store == nil {
		panic("surface: binding store is required")
	}

	r := &Resolver{
		store:         store,
		defaultPolicy: PolicyDeny,
		lookups:       cache.NewTTL[lookupKey, cached](512, 30*time.Second),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewResolverFromConfig creates a Resolver from environment-driven config.
func NewResolverFromConfig(store BindingStore, cfg Config) *Resolver {
	return NewResolver(store,
		WithDefaultPolicy(cfg.DefaultPolicy),
		WithCache(cfg.CacheSize, cfg.CacheTTL),
	)
}

// DefaultPolicy returns the configured behavior for unregistered surfaces.
func (r *Resolver) DefaultPolicy() Policy {
	return r.defaultPolicy
}

// Binding resolves the binding registered for a surface in a tenant.
// Returns ErrBindingNotFound for unregistered surfaces; misses are cached
// like hits so repeated probes of a missing surface stay cheap.
func (r *Resolver) Binding(ctx context.Context, tenantID uuid.UUID, surfaceID string) (*Binding, error) {
	key := lookupKey{tenantID, surfaceID}

	if r.lookups != nil {
		if entry, ok := r.lookups.Get(key); ok {
			if !entry.found {
				return nil, ErrBindingNotFound
			}
			cp := *entry.binding
			return &cp, nil
		}
	}

	binding, err := r.store.GetBinding(ctx, tenantID, surfaceID)
	if err != nil {
		if errors.Is(err, ErrBindingNotFound) {
			if r.lookups != nil {
				r.lookups.Put(key, cached{})
			}
			return nil, ErrBindingNotFound
		}
		return nil, fmt.Errorf("get binding: %w", err)
	}

	if r.lookups != nil {
		cp := *binding
		r.lookups.Put(key, cached{binding: &cp, found: true})
	}
	return binding, nil
}

// Invalidate drops a cached lookup after a binding changes.
func (r *Resolver) Invalidate(tenantID uuid.UUID, surfaceID string) {
	if r.lookups != nil {
		r.lookups.Remove(lookupKey{tenantID, surfaceID})
	}
}
