// Package gate is the policy evaluation engine: it answers "may this
// principal perform this action in this tenant" by composing permission,
// role, license, and surface checks into a single decision.
//
// Every gate implements the same three operations:
//
//   - Check returns a structured Decision with a human-readable denial
//     reason.
//   - Allows is sugar for Check().Allowed.
//   - Verify returns an *AccessDeniedError when the check fails, for
//     callers that prefer error flow.
//
// Gates compose with All (every gate must pass, short-circuits on the
// first denial) and Any (one passing gate suffices, short-circuits on the
// first success). Combinators are themselves gates and nest arbitrarily:
//
//	g := gate.All(
//	    gate.Any(engine.SuperAdmin(), engine.Roles(gate.ModeAny, "admin")),
//	    engine.License("reports"),
//	)
//	if g.Allows(ctx, principal) { ... }
//
// Gates built through an Engine honor the superadmin bypass: a principal
// holding the superadmin designation passes every engine-built gate.
//
// By default gates fail gracefully: an unexpected storage error becomes a
// denial with an internal-error reason rather than propagating. Wrap a
// gate with WithoutGracefulFail to surface such errors to the caller, and
// with WithFallback to attach a UI redirect target to denials. The
// fallback is a side channel for callers; it never influences the
// decision itself.
package gate
