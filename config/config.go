// Package config loads the settings used to locate the database server that
// ephemeral databases are created on.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wickwirew/glowplug/internal/syncx"
)

// ErrMissingDatabaseURL is returned by [Load] when no server-level connection
// string is configured.
var ErrMissingDatabaseURL = errors.New("no database URL is configured")

const (
	// DefaultURLVariable is the environment variable that holds the
	// server-level connection string.
	DefaultURLVariable = "DATABASE_URL"

	// MigrationsTableVariable is the environment variable that overrides
	// the name of the table used to record applied migrations.
	MigrationsTableVariable = "GLOWPLUG_MIGRATIONS_TABLE"

	// EnvFileVariable is the environment variable that overrides the path
	// of the .env file.
	EnvFileVariable = "GLOWPLUG_ENV_FILE"

	// DefaultEnvFile is the .env file loaded when no other is specified.
	DefaultEnvFile = ".env"

	// DefaultMigrationsTable is the name of the table used to record applied
	// migrations, unless overridden.
	DefaultMigrationsTable = "schema_migrations"
)

// Config is the configuration of a harness.
type Config struct {
	// DatabaseURL is the server-level connection string.
	DatabaseURL string `mapstructure:"database_url"`

	// MigrationsTable is the name of the table used to record applied
	// migrations.
	MigrationsTable string `mapstructure:"migrations_table"`
}

// Option is an option that changes the behavior of [Load].
type Option func(*options)

type options struct {
	envFile     string
	urlVariable string
}

// WithEnvFile is an [Option] that loads variables from the .env file at the
// given path instead of the default.
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = path
	}
}

// WithURLVariable is an [Option] that reads the server-level connection
// string from the given environment variable instead of DATABASE_URL.
func WithURLVariable(name string) Option {
	return func(o *options) {
		o.urlVariable = name
	}
}

// Load returns the configuration described by the environment.
//
// Variables are read from the process environment and from a .env file, with
// the process environment taking precedence. A missing .env file is not an
// error.
//
// If no database URL is configured, the returned error wraps
// [ErrMissingDatabaseURL] and the remaining settings are still returned, so
// that the caller can supply its own server.
func Load(opts ...Option) (Config, error) {
	o := options{
		envFile:     os.Getenv(EnvFileVariable),
		urlVariable: DefaultURLVariable,
	}

	if o.envFile == "" {
		o.envFile = DefaultEnvFile
	}

	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	v.SetDefault("migrations_table", DefaultMigrationsTable)

	file, err := godotenv.Read(o.envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("unable to read %s: %w", o.envFile, err)
	}

	bindings := map[string]string{
		"database_url":     o.urlVariable,
		"migrations_table": MigrationsTableVariable,
	}

	for key, env := range bindings {
		if value, ok := file[env]; ok {
			v.SetDefault(key, value)
		}

		if err := v.BindEnv(key, env); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal configuration: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("%w, set the %s environment variable", ErrMissingDatabaseURL, o.urlVariable)
	}

	return cfg, nil
}

var defaultConfig syncx.SucceedOnce[Config]

// Default returns the configuration described by the environment, loading it
// with the default options on first use.
//
// Failures are not cached, so a later call may succeed once the environment is
// corrected.
func Default() (Config, error) {
	return defaultConfig.Do(func() (Config, error) {
		return Load()
	})
}

// MigrationsTable returns the name of the table used to record applied
// migrations, as configured by the environment.
//
// Unlike [Load], it does not require a database URL to be configured. If the
// environment cannot be read, [DefaultMigrationsTable] is returned.
func MigrationsTable() string {
	cfg, _ := Load()
	if cfg.MigrationsTable == "" {
		return DefaultMigrationsTable
	}
	return cfg.MigrationsTable
}
