package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be
	// parsed into the config struct.
	ErrParsingConfig = errors.New("config.parsing_failed")

	// ErrConfigNotLoaded is returned when a config type cannot be served
	// from the cache after a load attempt.
	ErrConfigNotLoaded = errors.New("config.not_loaded")

	// ErrNilPointer is returned when a nil pointer is provided to Load.
	ErrNilPointer = errors.New("config.nil_pointer")

	// ErrEnvFileNotFound is returned by LoadEnv when a named .env file
	// does not exist.
	ErrEnvFileNotFound = errors.New("config.env_file_not_found")
)
