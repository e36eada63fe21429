package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/pkg/gate"
	"github.com/gatekit/gatekit/pkg/license"
	"github.com/gatekit/gatekit/pkg/rbac"
	"github.com/gatekit/gatekit/pkg/surface"
)

// world wires the three resolvers over in-memory stores and provides
// helpers to populate them.
type world struct {
	rbac     *rbac.MemoryStore
	grants   *license.MemoryGrantStore
	bindings *surface.MemoryBindingStore

	engine   *gate.Engine
	tenantID uuid.UUID
}

func newWorld(t *testing.T, opts ...gate.EngineOption) *world {
	t.Helper()

	w := &world{
		rbac:     rbac.NewMemoryStore(),
		grants:   license.NewMemoryGrantStore(),
		bindings: surface.NewMemoryBindingStore(),
		tenantID: uuid.New(),
	}
	w.engine = gate.NewEngine(
		rbac.NewResolver(w.rbac, w.rbac, w.rbac, w.rbac),
		license.NewResolver(w.grants),
		surface.NewResolverFromConfig(w.bindings, surface.Config{DefaultPolicy: surface.PolicyDeny, CacheSize: 0}),
		opts...,
	)
	return w
}

// user creates a principal holding a fresh role with the given permission
// codes, returning the principal and the role.
func (w *world) user(t *testing.T, roleKey string, codes ...string) (gate.Principal, *rbac.Role) {
	t.Helper()
	ctx := context.Background()

	tenantID := w.tenantID
	role := &rbac.Role{TenantID: &tenantID, Key: roleKey, MetadataKey: roleKey, Scope: rbac.RoleScopeTenant}
	require.NoError(t, w.rbac.SaveRole(ctx, role))

	for _, code := range codes {
		perm := &rbac.Permission{TenantID: w.tenantID, Code: code, Source: rbac.SourceManual}
		if err := w.rbac.CreatePermission(ctx, perm); errors.Is(err, rbac.ErrPermissionExists) {
			existing, getErr := w.rbac.GetPermissionByCode(ctx, w.tenantID, code)
			require.NoError(t, getErr)
			perm = existing
		} else {
			require.NoError(t, err)
		}
		require.NoError(t, w.rbac.LinkRolePermission(ctx, role.ID, perm.ID))
	}

	userID := uuid.New()
	require.NoError(t, w.rbac.Assign(ctx, rbac.Assignment{UserID: userID, RoleID: role.ID, TenantID: w.tenantID}))
	return gate.Principal{UserID: userID, TenantID: w.tenantID}, role
}

func (w *world) grant(t *testing.T, feature string) {
	t.Helper()
	require.NoError(t, w.grants.SaveGrant(context.Background(), &license.Grant{
		TenantID: w.tenantID,
		Feature:  feature,
		StartsAt: time.Now().Add(-time.Hour),
		Source:   license.GrantSourcePlan,
	}))
}

func TestPermissionsGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w := newWorld(t)
	p, _ := w.user(t, "staff", "reports:view", "reports:export")
	stranger := gate.Principal{UserID: uuid.New(), TenantID: w.tenantID}

	tests := []struct {
		name      string
		gate      gate.Gate
		principal gate.Principal
		allowed   bool
	}{
		{"all present", w.engine.Permissions(gate.ModeAll, "reports:view", "reports:export"), p, true},
		{"all with one missing", w.engine.Permissions(gate.ModeAll, "reports:view", "billing:view"), p, false},
		{"any with one present", w.engine.Permissions(gate.ModeAny, "billing:view", "reports:view"), p, true},
		{"any with none present", w.engine.Permissions(gate.ModeAny, "billing:view", "members:edit"), p, false},
		{"unknown user denied", w.engine.Permissions(gate.ModeAny, "reports:view"), stranger, false},
		{"anonymous denied", w.engine.Permissions(gate.ModeAny, "reports:view"), gate.Principal{TenantID: w.tenantID}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.gate.Check(ctx, tt.principal)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, d.Reason)
			}
			assert.Equal(t, tt.allowed, tt.gate.Allows(ctx, tt.principal))
		})
	}
}

func TestPermissionsGate_EmptyCodesIsConfigError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w := newWorld(t)
	p, _ := w.user(t, "staff", "reports:view")

	// Graceful (default): denial carrying the config error message.
	g := w.engine.Permissions(gate.ModeAll)
	d, err := g.Check(ctx, p)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "empty_config")

	// Loud: the configuration error propagates.
	_, err = gate.WithoutGracefulFail(g).Check(ctx, p)
	assert.ErrorIs(t, err, gate.ErrEmptyGateConfig)
}

func TestRolesGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w := newWorld(t)
	p, _ := w.user(t, "staff")

	assert.True(t, w.engine.Roles(gate.ModeAny, "staff", "admin").Allows(ctx, p))
	assert.True(t, w.engine.Roles(gate.ModeAll, "staff").Allows(ctx, p))
	assert.False(t, w.engine.Roles(gate.ModeAll, "staff", "admin").Allows(ctx, p))
	assert.False(t, w.engine.Roles(gate.ModeAny, "admin").Allows(ctx, p))
}

func TestLicenseGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w := newWorld(t)
	p, _ := w.user(t, "staff")
	w.grant(t, "reports")

	assert.True(t, w.engine.License("reports").Allows(ctx, p))

	d, err := w.engine.License("giving").Check(ctx, p)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "not licensed")
}

func TestAuthenticatedGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	assert.True(t, gate.Authenticated().Allows(ctx, gate.Principal{UserID: uuid.New()}))

	d, err := gate.Authenticated().Check(ctx, gate.Principal{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, gate.ReasonNotAuthenticated, d.Reason)
}

func TestCustomGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	owner := uuid.New()
	isOwner := func(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
		return userID == owner, nil
	}

	g := gate.Custom(isOwner, "you do not own this record")
	assert.True(t, g.Allows(ctx, gate.Principal{UserID: owner}))

	d, err := g.Check(ctx, gate.Principal{UserID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "you do not own this record", d.Reason)
}

func TestGracefulFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	boom := errors.New("storage down")
	g := gate.Custom(func(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
		return false, boom
	}, "")

	// Graceful: the internal error becomes a denial with an opaque reason.
	d, err := g.Check(ctx, gate.Principal{UserID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, gate.ReasonInternalError, d.Reason)

	// Loud: the error propagates untouched.
	_, err = gate.WithoutGracefulFail(g).Check(ctx, gate.Principal{UserID: uuid.New()})
	assert.ErrorIs(t, err, boom)
}

func TestVerify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w := newWorld(t)
	p, _ := w.user(t, "staff", "reports:view")

	assert.NoError(t, w.engine.Permissions(gate.ModeAll, "reports:view").Verify(ctx, p))

	err := w.engine.Permissions(gate.ModeAll, "billing:view").Verify(ctx, p)
	require.Error(t, err)
	assert.True(t, gate.IsAccessDenied(err))

	var denied *gate.AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, denied.Reason, "billing:view")
	assert.Contains(t, denied.Error(), "access denied")
}

func TestWithFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w := newWorld(t)
	p, _ := w.user(t, "staff")

	g := gate.WithFallback(w.engine.Roles(gate.ModeAny, "admin"), "/upgrade", "admins only")

	d, err := g.Check(ctx, p)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "/upgrade", d.Fallback)
	assert.Equal(t, "admins only", d.Reason)

	// The fallback never affects an allowed decision.
	d, err = gate.WithFallback(w.engine.Roles(gate.ModeAny, "staff"), "/upgrade", "").Check(ctx, p)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Fallback)
}

func TestSuperAdminBypass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w := newWorld(t)

	root := &rbac.Role{Key: rbac.SuperAdminRoleKey, IsSystem: true, Scope: rbac.RoleScopeSystem}
	require.NoError(t, w.rbac.SaveRole(ctx, root))
	admin := gate.Principal{UserID: uuid.New(), TenantID: w.tenantID}
	require.NoError(t, w.rbac.Assign(ctx, rbac.Assignment{UserID: admin.UserID, RoleID: root.ID, TenantID: w.tenantID}))

	assert.True(t, w.engine.SuperAdmin().Allows(ctx, admin))

	// Bypass: a superadmin passes gates it would otherwise fail.
	assert.True(t, w.engine.Permissions(gate.ModeAll, "anything:at_all").Allows(ctx, admin))
	assert.True(t, w.engine.Roles(gate.ModeAll, "nonexistent").Allows(ctx, admin))
	assert.True(t, w.engine.License("unlicensed").Allows(ctx, admin))

	p, _ := w.user(t, "staff")
	assert.False(t, w.engine.SuperAdmin().Allows(ctx, p))
}

func TestSuperAdminBypass_Disabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w := newWorld(t, gate.WithoutSuperAdminBypass())

	root := &rbac.Role{Key: rbac.SuperAdminRoleKey, IsSystem: true, Scope: rbac.RoleScopeSystem}
	require.NoError(t, w.rbac.SaveRole(ctx, root))
	admin := gate.Principal{UserID: uuid.New(), TenantID: w.tenantID}
	require.NoError(t, w.rbac.Assign(ctx, rbac.Assignment{UserID: admin.UserID, RoleID: root.ID, TenantID: w.tenantID}))

	assert.False(t, w.engine.Roles(gate.ModeAll, "nonexistent").Allows(ctx, admin))
}
