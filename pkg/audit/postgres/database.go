// Package postgres persists execpool audit records to PostgreSQL using the
// same pgxpool + golang-migrate pairing noisefs's compliance storage uses,
// with the audit chain's own hash-linkage in place of noisefs's sha256
// scheme.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/nullstacklabs/execpool/pkg/audit"
)

// Config configures the connection pool and migration source for Store.
type Config struct {
	ConnectionString string
	MaxConnections   int32
	ConnectTimeout   time.Duration
	MigrationsPath   string
}

// Store is a Postgres-backed audit.Sink: every appended Record lands in
// the audit_records table, in addition to living in the in-memory
// audit.Chain that produced it.
type Store struct {
	pool   *pgxpool.Pool
	config *Config
}

// Open connects to Postgres, verifies connectivity, and returns a Store.
// Callers that also want schema migrations applied should follow with
// MigrateToLatest.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil || cfg.ConnectionString == "" {
		return nil, fmt.Errorf("postgres: connection string is required")
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 10
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "file://pkg/audit/postgres/migrations"
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(timeoutCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create connection pool: %w", err)
	}
	if err := pool.Ping(timeoutCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	return &Store{pool: pool, config: cfg}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// MigrateToLatest applies every pending migration under config.MigrationsPath.
func (s *Store) MigrateToLatest() error {
	migrationDB, err := sql.Open("postgres", s.config.ConnectionString)
	if err != nil {
		return fmt.Errorf("postgres: failed to open migration connection: %w", err)
	}
	defer migrationDB.Close()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres: failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(s.config.MigrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("postgres: failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("postgres: failed to apply migrations: %w", err)
	}
	return nil
}

// Append implements audit.Sink. An insert failure is discarded: it is
// neither returned nor logged — Sink.Append has no error path by contract,
// matching Chain's own infallible Record method.
func (s *Store) Append(rec audit.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _ = s.pool.Exec(ctx, `
		INSERT INTO audit_records (seq_no, recorded_at, event_type, detail, previous_hash, entry_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entry_hash) DO NOTHING`,
		rec.SeqNo, rec.Time, rec.TypeName(), rec.Detail, rec.PreviousHash, rec.EntryHash,
	)
}

// Records returns every persisted record within [start, end], ordered by
// sequence number.
func (s *Store) Records(ctx context.Context, start, end time.Time) ([]audit.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq_no, recorded_at, event_type, detail, previous_hash, entry_hash
		FROM audit_records
		WHERE recorded_at >= $1 AND recorded_at <= $2
		ORDER BY seq_no ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var r rawRecord
		if err := rows.Scan(&r.SeqNo, &r.RecordedAt, &r.EventType, &r.Detail, &r.PreviousHash, &r.EntryHash); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan audit record: %w", err)
		}
		out = append(out, r.toRecord())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating audit records: %w", err)
	}
	return out, nil
}

// ByEventType returns every persisted record of the given type, oldest
// first, so a question like "how many times has this pool shut down" can be
// answered without replaying the whole table.
func (s *Store) ByEventType(ctx context.Context, eventType string) ([]audit.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq_no, recorded_at, event_type, detail, previous_hash, entry_hash
		FROM audit_records
		WHERE event_type = $1
		ORDER BY seq_no ASC`, eventType)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var r rawRecord
		if err := rows.Scan(&r.SeqNo, &r.RecordedAt, &r.EventType, &r.Detail, &r.PreviousHash, &r.EntryHash); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan audit record: %w", err)
		}
		out = append(out, r.toRecord())
	}
	return out, rows.Err()
}

// rawRecord mirrors the audit_records row shape before it is translated
// back into an audit.Record (which carries executor.EventType, not a
// string column).
type rawRecord struct {
	SeqNo        uint64
	RecordedAt   time.Time
	EventType    string
	Detail       string
	PreviousHash string
	EntryHash    string
}

func (r rawRecord) toRecord() audit.Record {
	return audit.Record{
		SeqNo:        r.SeqNo,
		Time:         r.RecordedAt,
		Type:         audit.ParseEventType(r.EventType),
		Detail:       r.Detail,
		PreviousHash: r.PreviousHash,
		EntryHash:    r.EntryHash,
	}
}
