package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/audit"
	"github.com/gatekit/gatekit/pkg/license"
	"github.com/gatekit/gatekit/pkg/rbac"
	"github.com/gatekit/gatekit/pkg/surface"
)

// RBACStore is the slice of the RBAC storage layer the pipeline writes
// through.
type RBACStore interface {
	rbac.RoleStore
	rbac.PermissionStore
}

// Pipeline converges a tenant's RBAC state with its active license
// grants. Every operation is idempotent: running it twice against an
// unchanged world performs no writes the second time. The pipeline only
// ever creates or removes permissions it owns (rbac.SourceLicenseFeature);
// manually created permissions are never touched.
type Pipeline struct {
	catalog  CatalogSource
	store    RBACStore
	licenses *license.Resolver
	bindings surface.BindingStore
	records  RecordStore

	log   *slog.Logger
	audit *audit.Logger
	cache rbac.PermissionCache
	grace time.Duration
	now   func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithAuditLogger records deployment writes to the audit trail.
func WithAuditLogger(a *audit.Logger) Option {
	return func(p *Pipeline) {
		p.audit = a
	}
}

// WithPermissionCache invalidates cached permission sets for a tenant
// after any pass that changed its RBAC state.
func WithPermissionCache(cache rbac.PermissionCache) Option {
	return func(p *Pipeline) {
		p.cache = cache
	}
}

// WithGracePeriod delays removal of a revoked feature's permissions.
// During the grace window the gate already denies license-enforced
// surfaces, but permission rows survive so a re-grant restores access
// without redeployment. Zero disables the window.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.grace = d
		}
	}
}

// WithClock injects the time source used for grace-period checks.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline creates a deployment pipeline over the given stores.
func NewPipeline(
	catalog CatalogSource,
	store RBACStore,
	licenses *license.Resolver,
	bindings surface.BindingStore,
	records RecordStore,
	opts ...Option,
) *Pipeline {
	if catalog == nil {
		panic("deploy: catalog source is required")
	}
	if store == nil {
		panic("deploy: rbac store is required")
	}
	if licenses == nil {
		panic("deploy: license resolver is required")
	}
	if bindings == nil {
		panic("deploy: binding store is required")
	}
	if records == nil {
		panic("deploy: record store is required")
	}

	p := &Pipeline{
		catalog:  catalog,
		store:    store,
		licenses: licenses,
		bindings: bindings,
		records:  records,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DeployFeaturePermissions materializes a licensed feature's permission
// templates into the tenant's RBAC tables. Returns ErrFeatureNotLicensed
// when the tenant holds no active grant, ErrFeatureNotInCatalog when the
// feature has no templates. Conflicts with existing manual permissions
// and missing template roles surface as warnings, not errors.
func (p *Pipeline) DeployFeaturePermissions(ctx context.Context, tenantID uuid.UUID, feature string) (*Result, error) {
	result, err := p.deployFeature(ctx, tenantID, feature)
	if err != nil {
		return nil, err
	}
	if result.Changed() {
		p.invalidate(ctx, tenantID)
	}
	return result, nil
}

func (p *Pipeline) deployFeature(ctx context.Context, tenantID uuid.UUID, feature string) (*Result, error) {
	licensed, err := p.licenses.HasFeature(ctx, tenantID, feature)
	if err != nil {
		return nil, fmt.Errorf("check license: %w", err)
	}
	if !licensed {
		return nil, fmt.Errorf("%w: %s", ErrFeatureNotLicensed, feature)
	}

	entry, err := p.catalog.Feature(ctx, feature)
	if err != nil {
		return nil, err
	}

	record, err := p.loadRecord(ctx, tenantID, feature)
	if err != nil {
		return nil, err
	}
	now := p.now()
	if lifecycle.CanFire(record.State, EventGrant) {
		if err := record.fire(EventGrant, now); err != nil {
			return nil, err
		}
	}

	result := &Result{Feature: feature}
	linked := make(map[uuid.UUID]map[uuid.UUID]bool)

	for _, tmpl := range entry.sortedPermissions() {
		perm, created, err := p.ensurePermission(ctx, tenantID, feature, tmpl.Code, result)
		if err != nil {
			return nil, err
		}
		if perm == nil {
			// Conflicting manual or system permission; the warning is
			// already recorded and the role templates do not apply.
			continue
		}
		if created {
			result.PermissionsCreated++
			p.record(ctx, tenantID, audit.ActionPermissionDeployed, tmpl.Code, map[string]any{"feature": feature})
		}

		for _, rt := range tmpl.Roles {
			role, err := p.store.FindRoleByMetadataKey(ctx, tenantID, rt.RoleKey)
			if err != nil {
				if errors.Is(err, rbac.ErrRoleNotFound) {
					result.warnf(feature, tmpl.Code, "role %q not provisioned for tenant", rt.RoleKey)
					continue
				}
				return nil, fmt.Errorf("find role %q: %w", rt.RoleKey, err)
			}

			has, err := p.roleHasPermission(ctx, linked, role.ID, perm.ID)
			if err != nil {
				return nil, err
			}
			if has {
				continue
			}
			if err := p.store.LinkRolePermission(ctx, role.ID, perm.ID); err != nil {
				return nil, fmt.Errorf("link role %q: %w", rt.RoleKey, err)
			}
			linked[role.ID][perm.ID] = true
			result.RoleLinksCreated++
			p.record(ctx, tenantID, audit.ActionRoleLinkCreated, tmpl.Code, map[string]any{"feature": feature, "role": rt.RoleKey})
		}
	}

	if entry.Surface != "" {
		if err := p.ensureBinding(ctx, tenantID, entry, result); err != nil {
			return nil, err
		}
	}

	if err := record.fire(EventDeploy, now); err != nil {
		return nil, err
	}
	if err := p.records.SaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("save deployment record: %w", err)
	}

	p.log.InfoContext(ctx, "feature deployed",
		slog.String("tenant_id", tenantID.String()),
		slog.String("feature", feature),
		slog.Int("permissions_created", result.PermissionsCreated),
		slog.Int("role_links_created", result.RoleLinksCreated),
		slog.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// ensurePermission fetches or creates the license-derived permission for
// a template code. Returns (nil, false, nil) when an unrelated permission
// already claims the code; the conflict is recorded as a warning.
func (p *Pipeline) ensurePermission(ctx context.Context, tenantID uuid.UUID, feature, code string, result *Result) (*rbac.Permission, bool, error) {
	existing, err := p.store.GetPermissionByCode(ctx, tenantID, code)
	switch {
	case err == nil:
		if existing.Source != rbac.SourceLicenseFeature {
			result.warnf(feature, code, "code already taken by %s permission", existing.Source)
			return nil, false, nil
		}
		return existing, false, nil
	case errors.Is(err, rbac.ErrPermissionNotFound):
		// fall through to create
	default:
		return nil, false, fmt.Errorf("get permission %q: %w", code, err)
	}

	perm := &rbac.Permission{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Code:      code,
		Source:    rbac.SourceLicenseFeature,
		SourceRef: feature,
	}
	if err := p.store.CreatePermission(ctx, perm); err != nil {
		// Lost a race with a concurrent deploy of the same code.
		if errors.Is(err, rbac.ErrPermissionExists) {
			existing, err := p.store.GetPermissionByCode(ctx, tenantID, code)
			if err != nil {
				return nil, false, fmt.Errorf("refetch permission %q: %w", code, err)
			}
			if existing.Source != rbac.SourceLicenseFeature {
				result.warnf(feature, code, "code already taken by %s permission", existing.Source)
				return nil, false, nil
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create permission %q: %w", code, err)
	}
	return perm, true, nil
}

func (p *Pipeline) roleHasPermission(ctx context.Context, cache map[uuid.UUID]map[uuid.UUID]bool, roleID, permID uuid.UUID) (bool, error) {
	existing, ok := cache[roleID]
	if !ok {
		perms, err := p.store.ListRolePermissions(ctx, roleID)
		if err != nil {
			return false, fmt.Errorf("list role permissions: %w", err)
		}
		existing = make(map[uuid.UUID]bool, len(perms))
		for _, perm := range perms {
			existing[perm.ID] = true
		}
		cache[roleID] = existing
	}
	return existing[permID], nil
}

// ensureBinding registers the feature's surface against its default role
// if no binding exists yet. An operator-edited binding is left alone.
func (p *Pipeline) ensureBinding(ctx context.Context, tenantID uuid.UUID, entry *Feature, result *Result) error {
	_, err := p.bindings.GetBinding(ctx, tenantID, entry.Surface)
	if err == nil {
		return nil
	}
	if !errors.Is(err, surface.ErrBindingNotFound) {
		return fmt.Errorf("get binding %q: %w", entry.Surface, err)
	}

	role := p.defaultRole(ctx, tenantID, entry)
	if role == nil {
		result.warnf(entry.Code, "", "no provisioned role to bind surface %q to", entry.Surface)
		return nil
	}

	binding := &surface.Binding{
		TenantID:        tenantID,
		Surface:         entry.Surface,
		Target:          surface.RoleTarget(role.ID),
		RequiredFeature: entry.Code,
		EnforcesLicense: true,
	}
	if err := p.bindings.SaveBinding(ctx, binding); err != nil {
		return fmt.Errorf("save binding %q: %w", entry.Surface, err)
	}
	result.BindingsCreated++
	p.record(ctx, tenantID, audit.ActionBindingCreated, entry.Surface, map[string]any{"feature": entry.Code, "role": role.Key})
	return nil
}

// defaultRole picks the binding target: the first recommended template
// role that is actually provisioned, falling back to the first
// provisioned role named at all.
func (p *Pipeline) defaultRole(ctx context.Context, tenantID uuid.UUID, entry *Feature) *rbac.Role {
	var fallback *rbac.Role
	for _, tmpl := range entry.sortedPermissions() {
		for _, rt := range tmpl.Roles {
			role, err := p.store.FindRoleByMetadataKey(ctx, tenantID, rt.RoleKey)
			if err != nil {
				continue
			}
			if rt.Recommended {
				return role
			}
			if fallback == nil {
				fallback = role
			}
		}
	}
	return fallback
}

// RemoveUnlicensedPermissions deletes license-derived permissions whose
// feature no longer has an active grant, honoring the grace period.
// Permissions with other sources are never candidates.
func (p *Pipeline) RemoveUnlicensedPermissions(ctx context.Context, tenantID uuid.UUID) (*Result, error) {
	result, err := p.removeUnlicensed(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if result.Changed() {
		p.invalidate(ctx, tenantID)
	}
	return result, nil
}

func (p *Pipeline) removeUnlicensed(ctx context.Context, tenantID uuid.UUID) (*Result, error) {
	active, err := p.licenses.ActiveFeatures(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active features: %w", err)
	}
	activeSet := make(map[string]bool, len(active))
	for _, f := range active {
		activeSet[f] = true
	}

	perms, err := p.store.ListPermissions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}

	byFeature := make(map[string][]rbac.Permission)
	for _, perm := range perms {
		if perm.Source != rbac.SourceLicenseFeature {
			continue
		}
		if activeSet[perm.SourceRef] {
			continue
		}
		byFeature[perm.SourceRef] = append(byFeature[perm.SourceRef], perm)
	}

	result := &Result{}
	if len(byFeature) == 0 {
		return result, nil
	}

	linkCounts, err := p.countRoleLinks(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := p.now()
	for feature, group := range byFeature {
		record, err := p.loadRecord(ctx, tenantID, feature)
		if err != nil {
			return nil, err
		}
		if record.State == StateNotLicensed {
			// Permissions exist with no deployment history; adopt them
			// so the lifecycle can run forward.
			record.State = StateDeployed
		}
		if lifecycle.CanFire(record.State, EventRevoke) {
			if err := record.fire(EventRevoke, now); err != nil {
				return nil, err
			}
			if err := p.records.SaveRecord(ctx, record); err != nil {
				return nil, fmt.Errorf("save deployment record: %w", err)
			}
		}

		if p.grace > 0 && record.RevokedAt != nil && now.Sub(*record.RevokedAt) < p.grace {
			p.log.InfoContext(ctx, "feature within removal grace period",
				slog.String("tenant_id", tenantID.String()),
				slog.String("feature", feature),
				slog.Time("revoked_at", *record.RevokedAt),
			)
			continue
		}
		if record.State != StatePendingRemoval {
			continue
		}

		for _, perm := range group {
			if err := p.store.DeletePermission(ctx, perm.ID); err != nil {
				return nil, fmt.Errorf("delete permission %q: %w", perm.Code, err)
			}
			result.PermissionsRemoved++
			result.RoleLinksRemoved += linkCounts[perm.ID]
			p.record(ctx, tenantID, audit.ActionPermissionRemoved, perm.Code, map[string]any{"feature": feature})
		}

		if err := record.fire(EventRemove, now); err != nil {
			return nil, err
		}
		if err := p.records.SaveRecord(ctx, record); err != nil {
			return nil, fmt.Errorf("save deployment record: %w", err)
		}

		p.log.InfoContext(ctx, "feature permissions removed",
			slog.String("tenant_id", tenantID.String()),
			slog.String("feature", feature),
			slog.Int("permissions_removed", len(group)),
		)
	}
	return result, nil
}

// countRoleLinks maps permission IDs to the number of role links they
// hold, so removals can report cascaded link deletions.
func (p *Pipeline) countRoleLinks(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int, error) {
	roles, err := p.store.ListRoles(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	counts := make(map[uuid.UUID]int)
	for _, role := range roles {
		perms, err := p.store.ListRolePermissions(ctx, role.ID)
		if err != nil {
			return nil, fmt.Errorf("list role permissions: %w", err)
		}
		for _, perm := range perms {
			counts[perm.ID]++
		}
	}
	return counts, nil
}

// SyncTenantPermissions converges the tenant's full RBAC state with its
// license grants: deploys every active catalog feature, then removes the
// leftovers. A failing feature is isolated into the result's Errors so
// the rest of the sync still converges.
func (p *Pipeline) SyncTenantPermissions(ctx context.Context, tenantID uuid.UUID) (*SyncResult, error) {
	active, err := p.licenses.ActiveFeatures(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active features: %w", err)
	}

	sr := &SyncResult{}
	for _, feature := range active {
		result, err := p.deployFeature(ctx, tenantID, feature)
		if err != nil {
			sr.Errors = append(sr.Errors, FeatureError{Feature: feature, Err: err})
			continue
		}
		sr.Deployed = append(sr.Deployed, *result)
	}

	removal, err := p.removeUnlicensed(ctx, tenantID)
	if err != nil {
		return sr, fmt.Errorf("removal pass: %w", err)
	}
	sr.Removal = removal

	if sr.Changed() {
		p.invalidate(ctx, tenantID)
	}
	p.record(ctx, tenantID, audit.ActionSyncCompleted, "", map[string]any{
		"features": len(active),
		"errors":   len(sr.Errors),
		"changed":  sr.Changed(),
	})
	p.log.InfoContext(ctx, "tenant sync completed",
		slog.String("tenant_id", tenantID.String()),
		slog.Int("features", len(active)),
		slog.Int("errors", len(sr.Errors)),
		slog.Bool("changed", sr.Changed()),
	)
	return sr, nil
}

// HandleChange reacts to a license grant change: grants and renewals
// deploy the feature, revocations run the removal pass. Suitable for
// subscription to a license.Notifier; failures are logged, never
// propagated into licensing code.
func (p *Pipeline) HandleChange(ctx context.Context, ev license.ChangeEvent) {
	var err error
	switch ev.Kind {
	case license.ChangeGranted, license.ChangeRenewed:
		_, err = p.DeployFeaturePermissions(ctx, ev.TenantID, ev.Feature)
	case license.ChangeRevoked:
		_, err = p.RemoveUnlicensedPermissions(ctx, ev.TenantID)
	default:
		return
	}
	if err != nil {
		p.log.ErrorContext(ctx, "license change handling failed",
			slog.String("tenant_id", ev.TenantID.String()),
			slog.String("feature", ev.Feature),
			slog.String("kind", string(ev.Kind)),
			slog.Any("error", err),
		)
	}
}

// loadRecord returns the deployment record for the pair, or a fresh
// not-licensed record when none exists yet.
func (p *Pipeline) loadRecord(ctx context.Context, tenantID uuid.UUID, feature string) (*Record, error) {
	record, err := p.records.GetRecord(ctx, tenantID, feature)
	if err != nil {
		return nil, fmt.Errorf("get deployment record: %w", err)
	}
	if record == nil {
		record = &Record{TenantID: tenantID, Feature: feature, State: StateNotLicensed}
	}
	return record, nil
}

func (p *Pipeline) invalidate(ctx context.Context, tenantID uuid.UUID) {
	if p.cache == nil {
		return
	}
	if err := p.cache.InvalidateTenant(ctx, tenantID); err != nil {
		p.log.WarnContext(ctx, "permission cache invalidation failed",
			slog.String("tenant_id", tenantID.String()),
			slog.Any("error", err),
		)
	}
}

func (p *Pipeline) record(ctx context.Context, tenantID uuid.UUID, action, resource string, metadata map[string]any) {
	if p.audit == nil {
		return
	}
	_ = p.audit.Record(ctx, audit.Event{
		TenantID: tenantID,
		Action:   action,
		Resource: resource,
		Metadata: metadata,
	})
}
