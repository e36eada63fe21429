package license_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/pkg/license"
)

func TestResolver_ActiveFeatures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tenantID := uuid.New()
	store := license.NewMemoryGrantStore()

	past := now.Add(-time.Hour)
	soon := now.Add(time.Hour)
	expired := now.Add(-time.Minute)

	grants := []license.Grant{
		{TenantID: tenantID, Feature: "reports", StartsAt: past, Source: license.GrantSourcePlan},
		{TenantID: tenantID, Feature: "checkin", StartsAt: past, ExpiresAt: &soon, Source: license.GrantSourceTrial},
		{TenantID: tenantID, Feature: "giving", StartsAt: past, ExpiresAt: &expired, Source: license.GrantSourcePlan},
		{TenantID: tenantID, Feature: "events", StartsAt: soon, Source: license.GrantSourcePlan},
	}
	for i := range grants {
		require.NoError(t, store.SaveGrant(ctx, &grants[i]))
	}

	resolver := license.NewResolver(store, license.WithClock(func() time.Time { return now }))

	features, err := resolver.ActiveFeatures(ctx, tenantID)
	require.NoError(t, err)
	// Perpetual and in-window grants count; expired and not-yet-started don't.
	assert.Equal(t, []string{"checkin", "reports"}, features)

	ok, err := resolver.HasFeature(ctx, tenantID, "reports")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = resolver.HasFeature(ctx, tenantID, "giving")
	require.NoError(t, err)
	assert.False(t, ok, "expired grant is not active")

	ok, err = resolver.HasFeature(ctx, tenantID, "unknown")
	require.NoError(t, err, "missing grant is not an error")
	assert.False(t, ok)
}

func TestResolver_ActiveFeatures_EmptyTenant(t *testing.T) {
	t.Parallel()

	resolver := license.NewResolver(license.NewMemoryGrantStore())
	features, err := resolver.ActiveFeatures(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestGrantStore_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := license.NewMemoryGrantStore()

	err := store.SaveGrant(ctx, &license.Grant{Feature: "reports"})
	assert.ErrorIs(t, err, license.ErrInvalidGrant, "tenant is required")

	err = store.SaveGrant(ctx, &license.Grant{TenantID: uuid.New()})
	assert.ErrorIs(t, err, license.ErrInvalidGrant, "feature is required")

	start := time.Now()
	before := start.Add(-time.Hour)
	err = store.SaveGrant(ctx, &license.Grant{
		TenantID: uuid.New(), Feature: "reports", StartsAt: start, ExpiresAt: &before,
	})
	assert.ErrorIs(t, err, license.ErrInvalidGrant, "expiry before start")
}

func TestGrantStore_SaveIsUpsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := license.NewMemoryGrantStore()
	tenantID := uuid.New()
	start := time.Now().Add(-time.Hour)

	require.NoError(t, store.SaveGrant(ctx, &license.Grant{
		TenantID: tenantID, Feature: "reports", StartsAt: start, Source: license.GrantSourceTrial,
	}))

	// Renewal replaces the window instead of duplicating the grant.
	renewed := start.Add(24 * time.Hour)
	require.NoError(t, store.SaveGrant(ctx, &license.Grant{
		TenantID: tenantID, Feature: "reports", StartsAt: start, ExpiresAt: &renewed, Source: license.GrantSourcePlan,
	}))

	grants, err := store.ListGrants(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, license.GrantSourcePlan, grants[0].Source)
	require.NotNil(t, grants[0].ExpiresAt)
}

func TestNotifier_FanOut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	notifier := license.NewNotifier(4)

	var mu sync.Mutex
	var got []license.ChangeEvent
	unsubscribe := notifier.Subscribe(func(ctx context.Context, ev license.ChangeEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	tenantID := uuid.New()
	require.NoError(t, notifier.Publish(ctx, license.ChangeEvent{
		TenantID: tenantID, Feature: "reports", Kind: license.ChangeGranted,
	}))
	require.NoError(t, notifier.Publish(ctx, license.ChangeEvent{
		TenantID: tenantID, Feature: "reports", Kind: license.ChangeRevoked,
	}))

	notifier.Close() // waits for delivery

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, license.ChangeGranted, got[0].Kind)
	assert.Equal(t, license.ChangeRevoked, got[1].Kind)
	assert.False(t, got[0].OccurredAt.IsZero())

	unsubscribe()
	assert.ErrorIs(t, notifier.Publish(ctx, license.ChangeEvent{}), license.ErrNotifierClosed)
}
