package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// configCache stores parsed configuration structs keyed by type name so
// each type is parsed from the environment at most once per process.
type configCache struct {
	mu     sync.RWMutex
	values map[string]any
}

var (
	globalCache = &configCache{values: make(map[string]any)}

	defaultEnvLoaded sync.Once
)

// LoadEnv loads one or more .env files into the process environment
// before parsing. Existing environment variables win over file values.
// Returns ErrEnvFileNotFound for missing files.
func LoadEnv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("%w: %s", ErrEnvFileNotFound, file)
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// Load parses environment variables into the provided configuration
// struct. The default .env file is loaded once per process if present;
// each configuration type is parsed once and served from cache after
// that.
//
//	type DatabaseConfig struct {
//	    URL string `env:"DATABASE_URL,required"`
//	}
//
//	var cfg DatabaseConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	typeName := typeNameOf[T]()

	globalCache.mu.RLock()
	cached, ok := globalCache.values[typeName]
	globalCache.mu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	// Another goroutine may have parsed while we waited for the lock.
	if cached, ok := globalCache.values[typeName]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	globalCache.values[typeName] = *v
	return nil
}

// MustLoad works like Load but panics when loading fails. Intended for
// configuration the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: failed to load %s: %v", typeNameOf[T](), err))
	}
}

// ResetCache clears all cached configuration values. Intended for tests
// that mutate the process environment between loads.
func ResetCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	globalCache.values = make(map[string]any)
}

func typeNameOf[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
