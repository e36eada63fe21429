// Package license tracks tenant feature grants and resolves which licensed
// features are currently active for a tenant.
//
// A grant is active while the current time falls inside its
// [StartsAt, ExpiresAt) window; a nil expiry means the grant is perpetual.
// The resolver is read-only; grant mutations happen through the GrantStore
// and are announced to interested parties (the deployment pipeline) through
// a one-directional ChangeEvent stream, which keeps licensing and
// deployment decoupled.
//
// Basic usage:
//
//	store := license.NewMemoryGrantStore()
//	resolver := license.NewResolver(store)
//
//	features, err := resolver.ActiveFeatures(ctx, tenantID)
//	if err != nil {
//	    // storage failure
//	}
//
// Grant changes fan out through a Notifier:
//
//	notifier := license.NewNotifier(16)
//	defer notifier.Close()
//	unsubscribe := notifier.Subscribe(func(ctx context.Context, ev license.ChangeEvent) {
//	    // trigger a tenant sync
//	})
//	defer unsubscribe()
package license
