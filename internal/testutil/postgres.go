// Package testutil provides test helpers including container management
// and test client utilities.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/gridmud/internal/config"
	"github.com/cory-johannsen/gridmud/internal/storage/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

var (
	sharedMu        sync.Mutex
	sharedContainer *PostgresContainer
)

// NewPool returns a pgx pool backed by a shared test container with the
// schema already applied. The container starts on first use and lives
// for the remainder of the test binary; the testcontainers reaper
// removes it after the process exits.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedContainer == nil {
		sharedContainer = startContainer(t)
		sharedContainer.ApplyMigrations(t)
	}
	return sharedContainer.RawPool
}

// NewPostgresContainer starts a dedicated PostgreSQL test container and
// returns a connected Pool. The container is terminated when the test
// finishes; prefer NewPool for repository tests that can share state.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	pc := startContainer(t)
	t.Cleanup(func() {
		pc.Pool.Close()
		_ = pc.container.Terminate(context.Background())
	})
	return pc
}

func startContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	return &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}
}

// ApplyMigrations runs the schema creation SQL directly for tests.
// This avoids requiring the migrate tool in the test environment.
//
// Precondition: Pool must be connected.
// Postcondition: All game tables exist in the test database.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	schema := `
		CREATE TABLE IF NOT EXISTS players (
			id                    UUID         PRIMARY KEY,
			username              VARCHAR(64)  NOT NULL UNIQUE,
			password_hash         TEXT         NOT NULL,
			display_name          VARCHAR(64)  NOT NULL,
			last_name_change      TIMESTAMPTZ,
			preferred_locale      VARCHAR(8)   NOT NULL DEFAULT 'en',
			is_admin              BOOLEAN      NOT NULL DEFAULT FALSE,
			last_room_id          VARCHAR(64),
			stats_blob            JSONB        NOT NULL DEFAULT '{}',
			quest_progress_blob   JSONB        NOT NULL DEFAULT '{}',
			completed_quests_blob JSONB        NOT NULL DEFAULT '{}',
			faction_id            VARCHAR(64),
			created_at            TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_players_username ON players (username);

		CREATE TABLE IF NOT EXISTS rooms (
			id                VARCHAR(64)  PRIMARY KEY,
			x                 INTEGER      NOT NULL,
			y                 INTEGER      NOT NULL,
			descriptions_blob JSONB        NOT NULL DEFAULT '{}',
			created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (x, y)
		);

		CREATE TABLE IF NOT EXISTS room_connections (
			from_x INTEGER NOT NULL,
			from_y INTEGER NOT NULL,
			to_x   INTEGER NOT NULL,
			to_y   INTEGER NOT NULL,
			PRIMARY KEY (from_x, from_y)
		);

		CREATE TABLE IF NOT EXISTS game_objects (
			id               UUID         PRIMARY KEY,
			template_id      VARCHAR(64),
			name_blob        JSONB        NOT NULL DEFAULT '{}',
			description_blob JSONB        NOT NULL DEFAULT '{}',
			category         VARCHAR(16)  NOT NULL,
			weight           INTEGER      NOT NULL DEFAULT 0,
			equipment_slot   VARCHAR(32)  NOT NULL DEFAULT '',
			is_equipped      BOOLEAN      NOT NULL DEFAULT FALSE,
			stackable        BOOLEAN      NOT NULL DEFAULT FALSE,
			max_stack        INTEGER      NOT NULL DEFAULT 1,
			quantity         INTEGER      NOT NULL DEFAULT 1,
			properties_blob  JSONB        NOT NULL DEFAULT '{}',
			location_type    VARCHAR(16)  NOT NULL,
			location_id      VARCHAR(64)  NOT NULL,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_game_objects_location
			ON game_objects (location_type, location_id);

		CREATE TABLE IF NOT EXISTS monsters (
			id                    UUID         PRIMARY KEY,
			template_id           VARCHAR(64)  NOT NULL,
			monster_type          VARCHAR(16)  NOT NULL,
			behavior              VARCHAR(16)  NOT NULL,
			x                     INTEGER      NOT NULL,
			y                     INTEGER      NOT NULL,
			spawn_x               INTEGER      NOT NULL,
			spawn_y               INTEGER      NOT NULL,
			hp                    INTEGER      NOT NULL,
			is_alive              BOOLEAN      NOT NULL DEFAULT TRUE,
			died_at               TIMESTAMPTZ,
			respawn_delay_seconds INTEGER      NOT NULL DEFAULT 60,
			properties_blob       JSONB        NOT NULL DEFAULT '{}',
			created_at            TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_monsters_coord ON monsters (x, y) WHERE is_alive;

		CREATE TABLE IF NOT EXISTS npcs (
			id                  VARCHAR(64)  PRIMARY KEY,
			name_blob           JSONB        NOT NULL DEFAULT '{}',
			description_blob    JSONB        NOT NULL DEFAULT '{}',
			npc_type            VARCHAR(32)  NOT NULL DEFAULT '',
			x                   INTEGER      NOT NULL,
			y                   INTEGER      NOT NULL,
			dialogue_blob       JSONB        NOT NULL DEFAULT '{}',
			shop_inventory_blob JSONB        NOT NULL DEFAULT '[]',
			script              VARCHAR(64)  NOT NULL DEFAULT '',
			faction_id          VARCHAR(64)  NOT NULL DEFAULT '',
			is_active           BOOLEAN      NOT NULL DEFAULT TRUE
		);
	`

	_, err := pc.RawPool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("migrations applied [%s]", time.Since(start))
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pc.Config.User, pc.Config.Password,
		pc.Config.Host, pc.Config.Port,
		pc.Config.Name, pc.Config.SSLMode,
	)
}
