// Package deploy materializes a tenant's licensed features into its
// concrete RBAC graph: permissions, role-permission links, and surface
// bindings.
//
// The pipeline consumes a feature catalog (which permissions a feature
// requires and which roles they default onto) plus the tenant's active
// grants, and keeps the two consistent:
//
//   - DeployFeaturePermissions expands one licensed feature into tenant
//     permissions and role links.
//   - RemoveUnlicensedPermissions deletes license-derived permissions
//     whose feature grant has lapsed, never touching manual permissions.
//   - SyncTenantPermissions diffs grants against deployed state and
//     applies both directions; per-feature failures are isolated and
//     collected, never thrown.
//   - DeploymentStatus reports drift between grants and deployed state.
//
// Every write is an idempotent upsert keyed by a uniqueness constraint,
// so the pipeline tolerates concurrent invocation for the same tenant
// and re-running a sync converges to the same end state regardless of
// feature order. The unit of atomicity is a single feature: a tenant
// sync is a sequence of independently recoverable per-feature
// deployments, and partial completion is an accepted state that the next
// sync repairs.
//
// Lifecycle per (tenant, feature) pair, validated against a state
// machine and persisted as a Record:
//
//	not_licensed → pending_deployment → deployed → pending_removal → removed
//
// Transitions happen only in response to license grant changes; the
// pipeline subscribes to those through license.Notifier rather than
// being called by licensing code directly.
package deploy
