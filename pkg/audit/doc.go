// Package audit records a trail of access-control events: permissions
// deployed or removed by the pipeline, bindings created, and gate
// denials.
//
// Recording is asynchronous and never blocks the caller: events are
// queued to a bounded buffer and written by a background goroutine. When
// the buffer is full the event is dropped rather than stalling a gate
// check or a deployment; the drop counter is exposed for monitoring.
//
//	logger := audit.NewLogger(audit.NewMemoryStorage(), 256)
//	defer logger.Close(ctx)
//
//	logger.Record(ctx, audit.Event{
//	    Action:   audit.ActionPermissionDeployed,
//	    TenantID: tenantID,
//	    Resource: "reports:export",
//	})
package audit
