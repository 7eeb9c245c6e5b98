package mytest

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/wickwirew/glowplug/config"
)

// URLVariable is the environment variable that holds the connection string of
// an existing MySQL server to test against.
const URLVariable = "MYSQL_URL"

// Setup returns the configuration of a MySQL server that can be used for the
// duration of the test.
//
// If MYSQL_URL is set, it is used as-is. Otherwise a server is started in a
// container, which is terminated when the test ends. The test is skipped if no
// container provider is available.
func Setup(t *testing.T) config.Config {
	t.Helper()

	cfg, err := config.Load(config.WithURLVariable(URLVariable))
	if err == nil {
		return cfg
	}

	if !errors.Is(err, config.ErrMissingDatabaseURL) {
		t.Fatal(err)
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	// Only root may create and drop arbitrary databases.
	container, err := mysql.Run(
		t.Context(),
		"mysql:8.4",
		mysql.WithUsername("root"),
		mysql.WithPassword(uuid.NewString()),
		testcontainers.WithCmdArgs("--max-connections=1000"),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatal(err)
	}

	dsn, err := container.ConnectionString(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	cfg.DatabaseURL = dsn
	return cfg
}
