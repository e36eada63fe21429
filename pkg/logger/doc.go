// Package logger provides a context-aware wrapper around slog with
// functional options for configuration, attribute constructors shared
// across the access-control core, and transparent injection of values
// stored in context.Context.
//
// The single factory New builds a *slog.Logger: it selects a text or
// JSON handler, attaches static attributes, and wraps the handler with
// ContextHandler which runs registered ContextExtractor callbacks on
// every record. Helper constructors such as TenantID, Feature, Surface,
// and Decision keep attribute naming consistent across packages.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Environment, "gatekit"),
//	    logger.WithContextExtractors(principalExtractor),
//	)
//	logger.SetAsDefault(log)
package logger
