// Package surface maps abstract surface identifiers (pages, menu items,
// API routes) to the role, bundle, and license requirements that gate them.
//
// A binding targets exactly one of a role, a bundle, or a menu entry; the
// Target type enforces that invariant structurally instead of with three
// nullable columns. A binding may additionally require an active license
// feature (EnforcesLicense).
//
// A surface with no registered binding is handled according to the
// resolver's default policy. The default is deny: an access-control layer
// should fail closed when a developer forgets to register a surface. Set
// SURFACE_DEFAULT_POLICY=allow to restore open-by-default behavior.
//
//	store := surface.NewMemoryBindingStore()
//	resolver := surface.NewResolver(store)
//
//	binding, err := resolver.Binding(ctx, tenantID, "members.directory")
//	if errors.Is(err, surface.ErrBindingNotFound) {
//	    // unregistered surface: apply resolver.DefaultPolicy()
//	}
package surface
