// Copyright 2025 ICN Federation
//
package dag

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	ipfscid "github.com/ipfs/go-cid"
	_ "github.com/lib/pq" // driver registration, matching the teacher's blank import
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLStore is a relational Store for deployments that already operate a
// Postgres fleet and want the DAG alongside other tables rather than a
// bespoke KV engine. Grounded on the teacher's pkg/database/client.go:
// functional-options construction, connection pooling, and an embedded
// migrations directory.
type SQLStore struct {
	db *sql.DB
}

// SQLStoreOption configures an SQLStore at construction time.
type SQLStoreOption func(*sqlStoreConfig)

type sqlStoreConfig struct {
	maxOpenConns int
	maxIdleConns int
}

// WithMaxOpenConns overrides the default open-connection pool size.
func WithMaxOpenConns(n int) SQLStoreOption {
	return func(c *sqlStoreConfig) { c.maxOpenConns = n }
}

// WithMaxIdleConns overrides the default idle-connection pool size.
func WithMaxIdleConns(n int) SQLStoreOption {
	return func(c *sqlStoreConfig) { c.maxIdleConns = n }
}

// NewSQLStore opens a Postgres-backed DAG store and applies embedded
// migrations. dsn must be a valid lib/pq connection string.
func NewSQLStore(dsn string, opts ...SQLStoreOption) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("dag: dsn must not be empty")
	}
	cfg := sqlStoreConfig{maxOpenConns: 25, maxIdleConns: 5}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("dag: open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)

	store := &SQLStore{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("dag: read migrations: %w", err)
	}
	for _, entry := range entries {
		contents, err := migrations.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("dag: read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.Exec(string(contents)); err != nil {
			return fmt.Errorf("dag: apply migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (s *SQLStore) Put(ctx context.Context, data []byte) (ipfscid.Cid, error) {
	id, err := computeAndCheck(data, nil, false)
	if err != nil {
		return ipfscid.Undef, err
	}

	var existing []byte
	row := s.db.QueryRowContext(ctx, `SELECT data FROM dag_blocks WHERE cid = $1`, id.String())
	err = row.Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.ExecContext(ctx, `INSERT INTO dag_blocks (cid, data) VALUES ($1, $2)`, id.String(), data); err != nil {
			return ipfscid.Undef, fmt.Errorf("dag: insert block: %w", err)
		}
		return id, nil
	case err != nil:
		return ipfscid.Undef, fmt.Errorf("dag: query block: %w", err)
	default:
		if _, err := computeAndCheck(data, existing, true); err != nil {
			return ipfscid.Undef, err
		}
		return id, nil
	}
}

func (s *SQLStore) Get(ctx context.Context, id ipfscid.Cid) ([]byte, bool, error) {
	var data []byte
	row := s.db.QueryRowContext(ctx, `SELECT data FROM dag_blocks WHERE cid = $1`, id.String())
	switch err := row.Scan(&data); {
	case err == sql.ErrNoRows:
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("dag: query block: %w", err)
	default:
		return data, true, nil
	}
}

func (s *SQLStore) Pin(ctx context.Context, id ipfscid.Cid) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO dag_pins (cid) VALUES ($1) ON CONFLICT (cid) DO NOTHING`, id.String())
	if err != nil {
		return fmt.Errorf("dag: pin: %w", err)
	}
	return nil
}

func (s *SQLStore) Unpin(ctx context.Context, id ipfscid.Cid) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dag_pins WHERE cid = $1`, id.String())
	if err != nil {
		return fmt.Errorf("dag: unpin: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
