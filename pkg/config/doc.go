// Package config loads application configuration from environment
// variables into tagged structs, with per-type caching so each struct is
// parsed at most once for the lifetime of the process.
//
// It wraps github.com/joho/godotenv for optional .env files and
// github.com/caarlos0/env/v11 for struct parsing:
//
//	type GateConfig struct {
//	    DefaultPolicy string        `env:"SURFACE_DEFAULT_POLICY" envDefault:"deny"`
//	    GracePeriod   time.Duration `env:"REVOCATION_GRACE_PERIOD" envDefault:"0"`
//	}
//
//	var cfg GateConfig
//	config.MustLoad(&cfg)
//
// Sentinel errors (ErrParsingConfig, ErrNilPointer, ErrEnvFileNotFound)
// compare with errors.Is. ResetCache exists for tests that mutate the
// environment between loads.
package config
