// Package testutil starts the containers used by integration tests. Every
// container and pool is released through t.Cleanup.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/database"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgImage = "pgvector/pgvector:0.8.1-pg18"
	pgCreds = "docqa"

	s3Image  = "rustfs/rustfs:latest"
	s3Secret = "docqaadmin"
)

// writable tables, in truncation order
var indexTables = []string{"index_entries", "ingest_jobs"}

// Postgres is a running pgvector database.
type Postgres struct {
	DSN string
}

// ObjectStore is a running S3 compatible store.
type ObjectStore struct {
	Endpoint  string
	AccessKey string
	SecretKey string
}

// StartPostgres runs pgvector and returns its connection string.
func StartPostgres(ctx context.Context, t *testing.T) *Postgres {
	t.Helper()
	host, port := start(ctx, t, testcontainers.ContainerRequest{
		Image:        pgImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCreds,
			"POSTGRES_PASSWORD": pgCreds,
			"POSTGRES_DB":       pgCreds,
		},
		// postgres logs readiness once for the init server, once for the real one
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(time.Minute),
	}, "5432/tcp")

	return &Postgres{
		DSN: fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgCreds, pgCreds, host, port, pgCreds),
	}
}

// Pool migrates the schema and connects. The first pings can fail while the
// port is open but the server is still starting.
func (p *Postgres) Pool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	if err := database.Migrate(p.DSN); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err := pgxpool.New(ctx, p.DSN)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				t.Cleanup(pool.Close)
				return pool
			}
			pool.Close()
		}
		lastErr = err
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	t.Fatalf("connect to %s: %v", p.DSN, lastErr)
	return nil
}

// Reset empties the index and the job table between subtests.
func Reset(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range indexTables {
		if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// StartObjectStore runs RustFS, which speaks the S3 API on port 9000.
func StartObjectStore(ctx context.Context, t *testing.T) *ObjectStore {
	t.Helper()
	host, port := start(ctx, t, testcontainers.ContainerRequest{
		Image:        s3Image,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": s3Secret,
			"RUSTFS_SECRET_KEY": s3Secret,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000/tcp")

	return &ObjectStore{
		Endpoint:  "http://" + host + ":" + port,
		AccessKey: s3Secret,
		SecretKey: s3Secret,
	}
}

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port nat.Port) (string, string) {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate %s: %v", req.Image, err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("%s port %s: %v", req.Image, port, err)
	}
	return host, mapped.Port()
}
