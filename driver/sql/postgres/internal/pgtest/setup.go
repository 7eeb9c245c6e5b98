package pgtest

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/wickwirew/glowplug/config"
)

// Setup returns the configuration of a PostgreSQL server that can be used for the
// duration of the test.
//
// If DATABASE_URL is set (directly or in .env), it is used as-is. Otherwise a server is started in a
// container, which is terminated when the test ends. The test is skipped if no
// container provider is available.
func Setup(t *testing.T) config.Config {
	t.Helper()

	cfg, err := config.Default()
	if err == nil {
		return cfg
	}

	if !errors.Is(err, config.ErrMissingDatabaseURL) {
		t.Fatal(err)
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	username := "glowplug"
	password := uuid.NewString()

	container, err := postgres.Run(
		t.Context(),
		"postgres:17-alpine",
		postgres.BasicWaitStrategies(),
		postgres.WithUsername(username),
		postgres.WithPassword(password),
		postgres.WithDatabase("postgres"),
		// Concurrency tests hold several connections per ephemeral database.
		testcontainers.WithCmdArgs("-c", "max_connections=1000"),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatal(err)
	}

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	cfg.DatabaseURL = dsn
	return cfg
}
