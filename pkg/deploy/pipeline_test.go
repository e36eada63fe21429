package deploy_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/pkg/deploy"
	"github.com/gatekit/gatekit/pkg/license"
	"github.com/gatekit/gatekit/pkg/rbac"
	"github.com/gatekit/gatekit/pkg/surface"
)

type pipelineFixture struct {
	tenantID uuid.UUID
	store    *rbac.MemoryStore
	grants   *license.MemoryGrantStore
	bindings *surface.MemoryBindingStore
	records  *deploy.MemoryRecordStore
	clock    *time.Time
	pipeline *deploy.Pipeline
}

func newPipelineFixture(t *testing.T, features ...deploy.Feature) *pipelineFixture {
	t.Helper()

	catalog, err := deploy.NewMemoryCatalog(features...)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &pipelineFixture{
		tenantID: uuid.New(),
		store:    rbac.NewMemoryStore(),
		grants:   license.NewMemoryGrantStore(),
		bindings: surface.NewMemoryBindingStore(),
		records:  deploy.NewMemoryRecordStore(),
		clock:    &now,
	}
	clock := func() time.Time { return *f.clock }
	f.pipeline = deploy.NewPipeline(
		catalog,
		f.store,
		license.NewResolver(f.grants, license.WithClock(clock)),
		f.bindings,
		f.records,
		deploy.WithClock(clock),
	)
	return f
}

func (f *pipelineFixture) advance(d time.Duration) {
	next := f.clock.Add(d)
	*f.clock = next
}

func (f *pipelineFixture) grant(t *testing.T, feature string) {
	t.Helper()
	err := f.grants.SaveGrant(context.Background(), &license.Grant{
		TenantID: f.tenantID,
		Feature:  feature,
		StartsAt: f.clock.Add(-time.Hour),
		Source:   license.GrantSourcePlan,
	})
	require.NoError(t, err)
}

func (f *pipelineFixture) revoke(t *testing.T, feature string) {
	t.Helper()
	require.NoError(t, f.grants.RevokeGrant(context.Background(), f.tenantID, feature))
}

func (f *pipelineFixture) addRole(t *testing.T, metadataKey string) *rbac.Role {
	t.Helper()
	role := &rbac.Role{
		ID:          uuid.New(),
		TenantID:    &f.tenantID,
		Key:         metadataKey,
		MetadataKey: metadataKey,
		Scope:       rbac.RoleScopeTenant,
	}
	require.NoError(t, f.store.SaveRole(context.Background(), role))
	return role
}

func (f *pipelineFixture) rolePermissionCodes(t *testing.T, roleID uuid.UUID) []string {
	t.Helper()
	perms, err := f.store.ListRolePermissions(context.Background(), roleID)
	require.NoError(t, err)
	var codes []string
	for _, p := range perms {
		codes = append(codes, p.Code)
	}
	return codes
}

func reportingFeature() deploy.Feature {
	return deploy.Feature{
		Code:    "advanced_reporting",
		Surface: "reports.dashboard",
		Permissions: []deploy.FeaturePermission{
			{
				Code:         "reports:view",
				Required:     true,
				DisplayOrder: 1,
				Roles: []deploy.RoleTemplate{
					{RoleKey: "admin", Recommended: true},
					{RoleKey: "staff"},
				},
			},
			{
				Code:         "reports:export",
				DisplayOrder: 2,
				Roles: []deploy.RoleTemplate{
					{RoleKey: "admin", Recommended: true},
				},
			},
		},
	}
}

func TestPipeline_DeployFeaturePermissions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates permissions links roles and registers surface", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		admin := f.addRole(t, "admin")
		staff := f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")

		result, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)

		assert.Equal(t, 2, result.PermissionsCreated)
		assert.Equal(t, 3, result.RoleLinksCreated)
		assert.Equal(t, 1, result.BindingsCreated)
		assert.Empty(t, result.Warnings)

		assert.ElementsMatch(t, []string{"reports:view", "reports:export"}, f.rolePermissionCodes(t, admin.ID))
		assert.ElementsMatch(t, []string{"reports:view"}, f.rolePermissionCodes(t, staff.ID))

		perm, err := f.store.GetPermissionByCode(ctx, f.tenantID, "reports:view")
		require.NoError(t, err)
		assert.Equal(t, rbac.SourceLicenseFeature, perm.Source)
		assert.Equal(t, "advanced_reporting", perm.SourceRef)

		binding, err := f.bindings.GetBinding(ctx, f.tenantID, "reports.dashboard")
		require.NoError(t, err)
		assert.Equal(t, surface.TargetRole, binding.Target.Kind())
		assert.Equal(t, admin.ID, binding.Target.ID())
		assert.Equal(t, "advanced_reporting", binding.RequiredFeature)
		assert.True(t, binding.EnforcesLicense)
	})

	t.Run("unlicensed feature is rejected", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		f.addRole(t, "admin")

		_, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.ErrorIs(t, err, deploy.ErrFeatureNotLicensed)

		perms, err := f.store.ListPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Empty(t, perms)
	})

	t.Run("unknown feature is rejected", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t)
		f.grant(t, "mystery")

		_, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "mystery")
		require.ErrorIs(t, err, deploy.ErrFeatureNotInCatalog)
	})

	t.Run("second deploy performs no writes", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		f.addRole(t, "admin")
		f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")

		_, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)

		again, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)
		assert.False(t, again.Changed())
		assert.Empty(t, again.Warnings)
	})

	t.Run("manual permission with same code is left alone", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		admin := f.addRole(t, "admin")
		f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")

		manual := &rbac.Permission{
			ID:       uuid.New(),
			TenantID: f.tenantID,
			Code:     "reports:view",
			Source:   rbac.SourceManual,
		}
		require.NoError(t, f.store.CreatePermission(ctx, manual))

		result, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)

		assert.Equal(t, 1, result.PermissionsCreated)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "reports:view", result.Warnings[0].Code)

		// The manual permission keeps its source and gains no role links.
		kept, err := f.store.GetPermissionByCode(ctx, f.tenantID, "reports:view")
		require.NoError(t, err)
		assert.Equal(t, rbac.SourceManual, kept.Source)
		assert.ElementsMatch(t, []string{"reports:export"}, f.rolePermissionCodes(t, admin.ID))
	})

	t.Run("missing template role is a warning not an error", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		f.addRole(t, "admin")
		f.grant(t, "advanced_reporting")

		result, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)

		assert.Equal(t, 2, result.PermissionsCreated)
		assert.Equal(t, 2, result.RoleLinksCreated)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Reason, "staff")
	})

	t.Run("operator edited binding is not overwritten", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		admin := f.addRole(t, "admin")
		f.addRole(t, "staff")
		custom := f.addRole(t, "auditor")
		f.grant(t, "advanced_reporting")

		require.NoError(t, f.bindings.SaveBinding(ctx, &surface.Binding{
			TenantID: f.tenantID,
			Surface:  "reports.dashboard",
			Target:   surface.RoleTarget(custom.ID),
		}))

		result, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)
		assert.Zero(t, result.BindingsCreated)

		binding, err := f.bindings.GetBinding(ctx, f.tenantID, "reports.dashboard")
		require.NoError(t, err)
		assert.Equal(t, custom.ID, binding.Target.ID())
		assert.NotEqual(t, admin.ID, binding.Target.ID())
	})
}

func TestPipeline_RemoveUnlicensedPermissions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("removes revoked feature permissions and cascades links", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		admin := f.addRole(t, "admin")
		f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")

		_, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)

		f.revoke(t, "advanced_reporting")

		result, err := f.pipeline.RemoveUnlicensedPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Equal(t, 2, result.PermissionsRemoved)
		assert.Equal(t, 3, result.RoleLinksRemoved)

		perms, err := f.store.ListPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Empty(t, perms)
		assert.Empty(t, f.rolePermissionCodes(t, admin.ID))
	})

	t.Run("manual permissions survive removal", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		admin := f.addRole(t, "admin")
		f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")

		_, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)

		manual := &rbac.Permission{
			ID:       uuid.New(),
			TenantID: f.tenantID,
			Code:     "billing:manage",
			Source:   rbac.SourceManual,
		}
		require.NoError(t, f.store.CreatePermission(ctx, manual))
		require.NoError(t, f.store.LinkRolePermission(ctx, admin.ID, manual.ID))

		f.revoke(t, "advanced_reporting")

		_, err = f.pipeline.RemoveUnlicensedPermissions(ctx, f.tenantID)
		require.NoError(t, err)

		kept, err := f.store.GetPermissionByCode(ctx, f.tenantID, "billing:manage")
		require.NoError(t, err)
		assert.Equal(t, rbac.SourceManual, kept.Source)
		assert.ElementsMatch(t, []string{"billing:manage"}, f.rolePermissionCodes(t, admin.ID))
	})

	t.Run("active features are untouched", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		f.addRole(t, "admin")
		f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")

		_, err := f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)

		result, err := f.pipeline.RemoveUnlicensedPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.False(t, result.Changed())

		perms, err := f.store.ListPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Len(t, perms, 2)
	})

	t.Run("grace period defers removal until it elapses", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		f.addRole(t, "admin")
		f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")

		clock := func() time.Time { return *f.clock }
		catalog, err := deploy.NewMemoryCatalog(reportingFeature())
		require.NoError(t, err)
		graced := deploy.NewPipeline(
			catalog,
			f.store,
			license.NewResolver(f.grants, license.WithClock(clock)),
			f.bindings,
			f.records,
			deploy.WithClock(clock),
			deploy.WithGracePeriod(72*time.Hour),
		)

		_, err = graced.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)
		f.revoke(t, "advanced_reporting")

		// Inside the window nothing is removed.
		result, err := graced.RemoveUnlicensedPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.False(t, result.Changed())
		perms, err := f.store.ListPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Len(t, perms, 2)

		// Once the window elapses the permissions go.
		f.advance(73 * time.Hour)
		result, err = graced.RemoveUnlicensedPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Equal(t, 2, result.PermissionsRemoved)
	})

	t.Run("re-grant during grace cancels removal", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature())
		f.addRole(t, "admin")
		f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")

		clock := func() time.Time { return *f.clock }
		catalog, err := deploy.NewMemoryCatalog(reportingFeature())
		require.NoError(t, err)
		graced := deploy.NewPipeline(
			catalog,
			f.store,
			license.NewResolver(f.grants, license.WithClock(clock)),
			f.bindings,
			f.records,
			deploy.WithClock(clock),
			deploy.WithGracePeriod(72*time.Hour),
		)

		_, err = graced.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)
		f.revoke(t, "advanced_reporting")
		_, err = graced.RemoveUnlicensedPermissions(ctx, f.tenantID)
		require.NoError(t, err)

		f.advance(24 * time.Hour)
		f.grant(t, "advanced_reporting")
		result, err := graced.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
		require.NoError(t, err)
		assert.False(t, result.Changed())

		f.advance(100 * time.Hour)
		removal, err := graced.RemoveUnlicensedPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.False(t, removal.Changed())
	})
}

func TestPipeline_SyncTenantPermissions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	crmFeature := deploy.Feature{
		Code: "crm",
		Permissions: []deploy.FeaturePermission{
			{Code: "contacts:manage", Roles: []deploy.RoleTemplate{{RoleKey: "admin", Recommended: true}}},
		},
	}

	t.Run("deploys active and removes revoked in one pass", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature(), crmFeature)
		f.addRole(t, "admin")
		f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")
		f.grant(t, "crm")

		sr, err := f.pipeline.SyncTenantPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Empty(t, sr.Errors)
		assert.Len(t, sr.Deployed, 2)
		assert.True(t, sr.Changed())

		f.revoke(t, "crm")

		sr, err = f.pipeline.SyncTenantPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Empty(t, sr.Errors)
		require.NotNil(t, sr.Removal)
		assert.Equal(t, 1, sr.Removal.PermissionsRemoved)

		_, err = f.store.GetPermissionByCode(ctx, f.tenantID, "contacts:manage")
		assert.ErrorIs(t, err, rbac.ErrPermissionNotFound)
		_, err = f.store.GetPermissionByCode(ctx, f.tenantID, "reports:view")
		assert.NoError(t, err)
	})

	t.Run("second sync of an unchanged world writes nothing", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature(), crmFeature)
		f.addRole(t, "admin")
		f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")
		f.grant(t, "crm")

		_, err := f.pipeline.SyncTenantPermissions(ctx, f.tenantID)
		require.NoError(t, err)

		again, err := f.pipeline.SyncTenantPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.False(t, again.Changed())
		assert.Empty(t, again.Warnings())
	})

	t.Run("licensed feature missing from catalog is isolated", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, crmFeature)
		f.addRole(t, "admin")
		f.grant(t, "crm")
		f.grant(t, "uncataloged")

		sr, err := f.pipeline.SyncTenantPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		require.Len(t, sr.Errors, 1)
		assert.Equal(t, "uncataloged", sr.Errors[0].Feature)
		assert.ErrorIs(t, sr.Errors[0].Err, deploy.ErrFeatureNotInCatalog)

		// The healthy feature still converged.
		_, err = f.store.GetPermissionByCode(ctx, f.tenantID, "contacts:manage")
		assert.NoError(t, err)
	})

	t.Run("converges regardless of prior partial state", func(t *testing.T) {
		t.Parallel()

		f := newPipelineFixture(t, reportingFeature(), crmFeature)
		admin := f.addRole(t, "admin")
		f.addRole(t, "staff")
		f.grant(t, "advanced_reporting")
		f.grant(t, "crm")

		// Partial state: one permission already present, half linked.
		perm := &rbac.Permission{
			ID:        uuid.New(),
			TenantID:  f.tenantID,
			Code:      "reports:view",
			Source:    rbac.SourceLicenseFeature,
			SourceRef: "advanced_reporting",
		}
		require.NoError(t, f.store.CreatePermission(ctx, perm))
		require.NoError(t, f.store.LinkRolePermission(ctx, admin.ID, perm.ID))

		sr, err := f.pipeline.SyncTenantPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Empty(t, sr.Errors)

		perms, err := f.store.ListPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Len(t, perms, 3)
		assert.ElementsMatch(t,
			[]string{"reports:view", "reports:export", "contacts:manage"},
			f.rolePermissionCodes(t, admin.ID))

		again, err := f.pipeline.SyncTenantPermissions(ctx, f.tenantID)
		require.NoError(t, err)
		assert.False(t, again.Changed())
	})
}

func TestPipeline_DeploymentStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newPipelineFixture(t, reportingFeature())
	f.addRole(t, "admin")
	f.addRole(t, "staff")

	statuses, err := f.pipeline.DeploymentStatus(ctx, f.tenantID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, deploy.StateNotLicensed, statuses[0].State)
	assert.False(t, statuses[0].Licensed)
	assert.False(t, statuses[0].Drifted())

	f.grant(t, "advanced_reporting")

	statuses, err = f.pipeline.DeploymentStatus(ctx, f.tenantID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Licensed)
	assert.True(t, statuses[0].Drifted())
	assert.ElementsMatch(t, []string{"reports:view", "reports:export"}, statuses[0].MissingPermissions)

	_, err = f.pipeline.DeployFeaturePermissions(ctx, f.tenantID, "advanced_reporting")
	require.NoError(t, err)

	statuses, err = f.pipeline.DeploymentStatus(ctx, f.tenantID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, deploy.StateDeployed, statuses[0].State)
	assert.Empty(t, statuses[0].MissingPermissions)
	assert.False(t, statuses[0].Drifted())
	assert.NotNil(t, statuses[0].DeployedAt)
}

func TestPipeline_HandleChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newPipelineFixture(t, reportingFeature())
	f.addRole(t, "admin")
	f.addRole(t, "staff")
	f.grant(t, "advanced_reporting")

	f.pipeline.HandleChange(ctx, license.ChangeEvent{
		TenantID: f.tenantID,
		Feature:  "advanced_reporting",
		Kind:     license.ChangeGranted,
	})

	_, err := f.store.GetPermissionByCode(ctx, f.tenantID, "reports:view")
	require.NoError(t, err)

	f.revoke(t, "advanced_reporting")
	f.pipeline.HandleChange(ctx, license.ChangeEvent{
		TenantID: f.tenantID,
		Feature:  "advanced_reporting",
		Kind:     license.ChangeRevoked,
	})

	_, err = f.store.GetPermissionByCode(ctx, f.tenantID, "reports:view")
	assert.ErrorIs(t, err, rbac.ErrPermissionNotFound)
}
