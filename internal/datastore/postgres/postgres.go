// Package postgres implements datastore.Store on top of PostgreSQL,
// following the teacher repository's internal/storage.Connection /
// LineageStore split: a thin *sql.DB wrapper, and a store type that owns
// the SQL for every datastore.Tx operation. Unlike the teacher, schema
// management here is a single embedded statement applied at startup
// rather than golang-migrate (see DESIGN.md for why that dependency was
// dropped) — this core has one small, stable schema with no migration
// history to replay.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/attrib-io/attributor/internal/datastore"
)

const postgresDriver = "postgres"

// Config bundles connection-pool tuning, mirroring the teacher's
// storage.Config shape.
type Config struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Store implements datastore.Store against a PostgreSQL connection pool.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection pool, verifies it with a timed health check,
// and ensures the schema exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open(postgresDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("postgres: health check failed: %w", err)
	}

	store := &Store{db: db}

	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return store, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// PendingTriggerIDs returns every trigger id still in PENDING status.
func (s *Store) PendingTriggerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM triggers WHERE status = 'PENDING'`)
	if err != nil {
		return nil, fmt.Errorf("%w: pending trigger ids: %w", datastore.ErrUnavailable, err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan pending trigger id: %w", datastore.ErrUnavailable, err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate pending trigger ids: %w", datastore.ErrUnavailable, err)
	}

	return ids, nil
}

// WithTransaction runs fn inside a single PostgreSQL transaction, committing
// iff fn returns nil and rolling back otherwise (spec.md §4.2, §5).
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx datastore.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", datastore.ErrUnavailable, err)
	}

	defer func() {
		_ = sqlTx.Rollback() // safe to call even after commit
	}()

	if err := fn(ctx, &tx{sqlTx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: ensure schema: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

// wrapNotFound turns a sql.ErrNoRows into the caller-visible
// datastore.ErrUnavailable, matching spec.md §7's framing that any
// datastore-boundary failure (including "the row this transaction needed
// is gone") is a retriable, not a business-rule, failure.
func wrapNotFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %q not found", datastore.ErrUnavailable, kind, id)
	}

	return fmt.Errorf("%w: %s %q: %w", datastore.ErrUnavailable, kind, id, err)
}

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id                          TEXT PRIMARY KEY,
	event_id                    BIGINT NOT NULL,
	publisher                   TEXT NOT NULL,
	publisher_type              TEXT NOT NULL,
	enrollment_id               TEXT NOT NULL,
	parent_id                   TEXT NOT NULL DEFAULT '',
	event_time                  BIGINT NOT NULL,
	expiry_time                 BIGINT NOT NULL,
	event_report_window         BIGINT NOT NULL,
	aggregatable_report_window  BIGINT NOT NULL,
	priority                    BIGINT NOT NULL,
	source_type                 TEXT NOT NULL,
	status                      TEXT NOT NULL,
	attribution_mode            TEXT NOT NULL,
	install_attributed          BOOLEAN NOT NULL DEFAULT FALSE,
	install_cooldown_window     BIGINT NOT NULL DEFAULT 0,
	filter_data                 JSONB NOT NULL DEFAULT '{}',
	aggregatable_source          JSONB NOT NULL DEFAULT '{}',
	aggregate_contributions     BIGINT NOT NULL DEFAULT 0,
	event_report_dedup_keys     BIGINT[] NOT NULL DEFAULT '{}',
	aggregate_report_dedup_keys BIGINT[] NOT NULL DEFAULT '{}',
	app_destinations            TEXT[] NOT NULL DEFAULT '{}',
	web_destinations            TEXT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_sources_enrollment ON sources (enrollment_id);
CREATE INDEX IF NOT EXISTS idx_sources_status ON sources (status);

CREATE TABLE IF NOT EXISTS triggers (
	id                         TEXT PRIMARY KEY,
	attribution_destination    TEXT NOT NULL,
	destination_type           TEXT NOT NULL,
	enrollment_id              TEXT NOT NULL,
	registrant                 TEXT NOT NULL,
	trigger_time               BIGINT NOT NULL,
	status                     TEXT NOT NULL,
	filters                    JSONB NOT NULL DEFAULT '[]',
	not_filters                JSONB NOT NULL DEFAULT '[]',
	event_triggers             JSONB NOT NULL DEFAULT '[]',
	aggregatable_trigger_data  JSONB NOT NULL DEFAULT '[]',
	aggregatable_dedup_keys    JSONB NOT NULL DEFAULT '[]',
	aggregatable_values        JSONB NOT NULL DEFAULT '{}',
	attribution_config         TEXT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_triggers_status ON triggers (status);

CREATE TABLE IF NOT EXISTS event_reports (
	id                      TEXT PRIMARY KEY,
	source_id               TEXT NOT NULL,
	trigger_id              TEXT NOT NULL,
	trigger_data            BIGINT NOT NULL,
	trigger_priority        BIGINT NOT NULL,
	trigger_time            BIGINT NOT NULL,
	report_time             BIGINT NOT NULL,
	trigger_dedup_key       BIGINT,
	attribution_destination TEXT NOT NULL,
	destination_type        TEXT NOT NULL,
	status                  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_reports_source ON event_reports (source_id);
CREATE INDEX IF NOT EXISTS idx_event_reports_dest ON event_reports (attribution_destination, destination_type);

CREATE TABLE IF NOT EXISTS aggregate_reports (
	id                       TEXT PRIMARY KEY,
	source_id                TEXT NOT NULL,
	trigger_id               TEXT NOT NULL,
	source_registration_time BIGINT NOT NULL,
	scheduled_report_time    BIGINT NOT NULL,
	attribution_destination  TEXT NOT NULL,
	destination_type         TEXT NOT NULL,
	enrollment_id            TEXT NOT NULL,
	contributions            JSONB NOT NULL DEFAULT '[]',
	dedup_key                BIGINT,
	status                   TEXT NOT NULL,
	debug_report_status      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_aggregate_reports_dest ON aggregate_reports (attribution_destination, destination_type);

CREATE TABLE IF NOT EXISTS attributions (
	id                 TEXT PRIMARY KEY,
	source_site        TEXT NOT NULL,
	source_origin      TEXT NOT NULL,
	destination_site   TEXT NOT NULL,
	destination_origin TEXT NOT NULL,
	enrollment_id      TEXT NOT NULL,
	source_time        BIGINT NOT NULL,
	trigger_time       BIGINT NOT NULL,
	registrant         TEXT NOT NULL,
	source_id          TEXT NOT NULL,
	trigger_id         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attributions_rate_limit
	ON attributions (source_site, destination_site, enrollment_id, registrant, trigger_time);
CREATE INDEX IF NOT EXISTS idx_attributions_origin_bound
	ON attributions (source_site, destination_site, source_time);

CREATE TABLE IF NOT EXISTS ignored_xna_sources (
	parent_id     TEXT NOT NULL,
	enrollment_id TEXT NOT NULL,
	PRIMARY KEY (parent_id, enrollment_id)
);
`
