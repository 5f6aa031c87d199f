// Package postgreswrapper starts a throwaway PostgreSQL container for integration tests
// and connects event stores to it with the adapter chosen by the ADAPTER_TYPE environment variable.
package postgreswrapper

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
	"github.com/AntonStoeckl/cdc-event-simulator/eventsim/postgresengine"
)

const (
	envAdapterType = "ADAPTER_TYPE"
	image          = "docker.io/postgres:16-alpine"
	dbName         = "main_db"
	dbUser         = "admin"
	dbPassword     = "admin"
)

// Container is a running PostgreSQL test container.
type Container struct {
	container *postgres.PostgresContainer
	dsn       string
}

// DSN returns the connection string of the container database.
func (c *Container) DSN() string {
	return c.dsn
}

// DSNWithPassword returns the connection string with the password replaced.
func (c *Container) DSNWithPassword(password string) string {
	return strings.Replace(c.dsn, dbUser+":"+dbPassword+"@", dbUser+":"+password+"@", 1)
}

// DSNWithDatabase returns the connection string pointing at another database on the same server.
func (c *Container) DSNWithDatabase(name string) string {
	return strings.Replace(c.dsn, "/"+dbName+"?", "/"+name+"?", 1)
}

// StartContainer starts a PostgreSQL container, or skips the test if no container provider is available.
// The container is terminated when the test finishes.
func StartContainer(t *testing.T) *Container {
	t.Helper()

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(image),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "error starting the postgres container")

	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable", "application_name=test")
	require.NoError(t, err, "error building the container connection string")

	return &Container{container: pgContainer, dsn: dsn}
}

// AdapterTypeFromEnv returns the adapter selected by ADAPTER_TYPE, defaulting to pgx.
func AdapterTypeFromEnv(t testing.TB) postgresengine.AdapterType {
	t.Helper()

	fromEnv := os.Getenv(envAdapterType)
	if fromEnv == "" {
		return postgresengine.AdapterPGX
	}

	adapterType, err := postgresengine.ParseAdapterType(fromEnv)
	if err != nil {
		panic(fmt.Sprintf("unsupported adapter type from env: %s", fromEnv))
	}

	return adapterType
}

// FastRetryPolicy retries quickly a few times, which is enough for a container that is already up.
func FastRetryPolicy(t testing.TB) eventsim.RetryPolicy {
	t.Helper()

	policy, err := eventsim.NewRetryPolicy(
		eventsim.WithMaxAttempts(3),
		eventsim.WithBaseDelay(50*time.Millisecond),
		eventsim.WithConnectTimeout(5*time.Second),
	)
	require.NoError(t, err)

	return policy
}

// ConnectEventStore connects an EventStore to dsn with the adapter from the environment.
// The store is closed when the test finishes.
func ConnectEventStore(t testing.TB, dsn string, options ...postgresengine.Option) *postgresengine.EventStore {
	t.Helper()

	store, err := postgresengine.Connect(context.Background(), dsn, AdapterTypeFromEnv(t), FastRetryPolicy(t), options...)
	require.NoError(t, err, "error connecting the event store")

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// OpenSQLX opens a separate sqlx connection for arranging and asserting test data.
func OpenSQLX(t testing.TB, dsn string) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err, "error opening the assertion connection")

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// DropTable removes a table created by a test.
func DropTable(t testing.TB, db *sqlx.DB, tableName string) {
	t.Helper()

	_, err := db.Exec("DROP TABLE IF EXISTS " + tableName)
	require.NoError(t, err, "error dropping the events table")
}

// SelectEvents reads all rows of the table ordered by ID.
func SelectEvents(t testing.TB, db *sqlx.DB, tableName string) []eventsim.Event {
	t.Helper()

	var events []eventsim.Event
	err := db.Select(&events, "SELECT id, event_type, value, created_at FROM "+tableName+" ORDER BY id")
	require.NoError(t, err, "error reading back events")

	return events
}

// ColumnTypes returns the data types of the table columns keyed by column name.
func ColumnTypes(t testing.TB, db *sqlx.DB, tableName string) map[string]string {
	t.Helper()

	type column struct {
		Name     string `db:"column_name"`
		DataType string `db:"data_type"`
	}

	var columns []column
	err := db.Select(
		&columns,
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = $1",
		tableName,
	)
	require.NoError(t, err, "error reading column types")

	types := make(map[string]string, len(columns))
	for _, c := range columns {
		types[c.Name] = c.DataType
	}

	return types
}
