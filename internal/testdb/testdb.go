// Package testdb connects repository tests to a disposable Postgres
// database. Tests are skipped unless DB_HOST_TEST is set.
package testdb

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/config"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/db"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Open returns a migrated connection or skips the test.
func Open(tb testing.TB) *db.Postgres {
	tb.Helper()

	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		tb.Skip("DB_HOST_TEST not set, skipping repository integration test")
	}

	cfg := config.PostgresConfig{
		Host:            host,
		Port:            getenv("DB_PORT_TEST", "5432"),
		User:            getenv("DB_USER_TEST", "postgres"),
		Password:        getenv("DB_PASSWORD_TEST", "123456"),
		DBName:          getenv("DB_NAME_TEST", "storefront_test"),
		SSLMode:         getenv("DB_SSLMODE_TEST", "disable"),
		Schema:          "storefront_test",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MigrationsPath:  migrationsDir(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pg, err := db.New(ctx, cfg)
	require.NoError(tb, err, "failed to connect to test database")
	require.NoError(tb, pg.Migrate(ctx, cfg), "failed to migrate test database")

	tb.Cleanup(pg.Close)
	return pg
}

// Truncate empties the given tables.
func Truncate(tb testing.TB, pg *db.Postgres, tables ...string) {
	tb.Helper()
	for _, table := range tables {
		_, err := pg.Pool.Exec(context.Background(), "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE")
		require.NoError(tb, err, "failed to truncate %s", table)
	}
}

func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}
