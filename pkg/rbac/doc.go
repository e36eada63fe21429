// Package rbac provides the tenant-scoped role and permission model and the
// permission resolver used by the access gate engine.
//
// The model is strictly additive: a user's effective permission set is the
// union of the permissions of every non-expired role assignment, including
// permissions reached through bundles linked to those roles. There is no
// deny rule and no precedence between roles.
//
// Permission codes follow the "{category}:{action}" format and support a
// trailing wildcard ("reports:*" matches "reports:export"). The resolver
// treats superadmin principals specially: they receive the global wildcard
// and therefore match every code.
//
// Basic usage:
//
//	store := rbac.NewMemoryStore()
//	resolver := rbac.NewResolver(store, store, store, store)
//
//	codes, err := resolver.EffectivePermissions(ctx, userID, tenantID)
//	if err != nil {
//	    // storage failure
//	}
//	if rbac.HasCode(codes, "reports:export") {
//	    // allowed
//	}
//
// Absence of data is equivalent to no access: resolving an unknown user or
// tenant yields an empty set and a nil error.
package rbac
