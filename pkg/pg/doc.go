// Package pg bootstraps the PostgreSQL layer: a pgx/v5 connection pool
// with retrying Connect, goose/v3 schema migrations routed through the
// application logger, a health probe, and error classification helpers
// (IsDuplicateKeyError, IsNotFoundError) used by the storage layer to map
// SQLSTATE codes onto domain sentinel errors.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil { ... }
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil { ... }
package pg
