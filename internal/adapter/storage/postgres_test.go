package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"fx-history-service/internal/adapter/storage/tests"
	"fx-history-service/pkg/retry"
	"fx-history-service/pkg/retry/backoff"
)

const (
	postgresImage   = "postgres"
	postgresVersion = "15-alpine"
	postgresUser    = "localtest"
	postgresPass    = "localpassword"
	postgresDB      = "testdb"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	code := func() int {
		pool, err := dockertest.NewPool("")
		if err == nil {
			err = pool.Client.Ping()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "docker unavailable, postgres tests will be skipped: %v\n", err)
			return m.Run()
		}

		db, cleanup, err := startPostgres(pool)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
			return 1
		}
		defer cleanup()

		testDB = db
		return m.Run()
	}()

	os.Exit(code)
}

func startPostgres(pool *dockertest.Pool) (*sql.DB, func(), error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: postgresImage,
		Tag:        postgresVersion,
		Env: []string{
			"POSTGRES_USER=" + postgresUser,
			"POSTGRES_PASSWORD=" + postgresPass,
			"POSTGRES_DB=" + postgresDB,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, func() {}, err
	}
	cleanup := func() { _ = pool.Purge(resource) }

	_ = resource.Expire(120)

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		postgresUser, postgresPass, resource.GetHostPort("5432/tcp"), postgresDB)

	var db *sql.DB
	_, err = retry.Retry(context.Background(),
		func(ctx context.Context) error {
			var openErr error
			db, openErr = OpenPostgres(ctx, dsn, 5)
			return openErr
		},
		retry.Limit(60),
		retry.Backoff(backoff.Constant(500*time.Millisecond), time.Second),
	)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	return db, func() { _ = db.Close(); cleanup() }, nil
}

func TestPostgresStore(t *testing.T) {
	if testDB == nil {
		t.Skip("docker not available")
	}

	if _, err := testDB.Exec(TableCreate); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	t.Cleanup(func() { _, _ = testDB.Exec(TableDestroy) })

	teardown := func() {
		if _, err := testDB.Exec(`TRUNCATE ` + tableName); err != nil {
			t.Fatalf("failed to truncate: %v", err)
		}
	}

	tests.RunTests(t, NewPostgresStore(testDB), teardown)
}
