package deploy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gatekit/gatekit/pkg/rbac"
)

// RoleTemplate recommends a default role (matched by its stable metadata
// key) for a permission derived from a feature.
type RoleTemplate struct {
	RoleKey     string `json:"role_key" yaml:"role_key"`
	Recommended bool   `json:"recommended" yaml:"recommended"`
}

// FeaturePermission declares that a feature requires a permission code,
// and which roles should receive it by default.
type FeaturePermission struct {
	Code         string         `json:"code" yaml:"code"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	Required     bool           `json:"required" yaml:"required"`
	DisplayOrder int            `json:"display_order" yaml:"display_order"`
	Roles        []RoleTemplate `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// Feature is a catalog entry: the permission templates behind a licensed
// feature, plus an optional surface the feature gates.
type Feature struct {
	Code        string              `json:"code" yaml:"code"`
	Surface     string              `json:"surface,omitempty" yaml:"surface,omitempty"`
	Permissions []FeaturePermission `json:"permissions" yaml:"permissions"`
}

// Validate checks the catalog entry invariants.
func (f *Feature) Validate() error {
	if f.Code == "" {
		return fmt.Errorf("%w: feature code is required", ErrInvalidCatalog)
	}
	for _, p := range f.Permissions {
		if !rbac.ValidCode(p.Code) {
			return fmt.Errorf("%w: feature %q: bad permission code %q", ErrInvalidCatalog, f.Code, p.Code)
		}
	}
	return nil
}

// sortedPermissions returns the templates in display order, stable for
// equal order values.
func (f *Feature) sortedPermissions() []FeaturePermission {
	out := make([]FeaturePermission, len(f.Permissions))
	copy(out, f.Permissions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out
}

// CatalogSource provides feature→permission templates. The catalog is
// authored out-of-band (an admin editor, a YAML file shipped with the
// application) and read-only from the pipeline's perspective.
type CatalogSource interface {
	// Feature returns the catalog entry for a feature code.
	// Returns ErrFeatureNotInCatalog if missing.
	Feature(ctx context.Context, code string) (*Feature, error)

	// Features returns all catalog entries.
	Features(ctx context.Context) ([]Feature, error)
}

// MemoryCatalog is a static in-memory CatalogSource.
type MemoryCatalog struct {
	mu       sync.RWMutex
	features map[string]Feature
}

// NewMemoryCatalog builds a catalog from the given features, validating
// each entry.
func NewMemoryCatalog(features ...Feature) (*MemoryCatalog, error) {
	c := &MemoryCatalog{features: make(map[string]Feature, len(features))}
	for _, f := range features {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		c.features[f.Code] = f
	}
	return c, nil
}

var _ CatalogSource = (*MemoryCatalog)(nil)

func (c *MemoryCatalog) Feature(ctx context.Context, code string) (*Feature, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.features[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFeatureNotInCatalog, code)
	}
	return &f, nil
}

func (c *MemoryCatalog) Features(ctx context.Context) ([]Feature, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Feature, 0, len(c.features))
	for _, f := range c.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
