package terminology

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofhir/gen3dict/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationValueSets is the DDL for the valuesets table. It is safe to run
// more than once.
const MigrationValueSets = `
CREATE TABLE IF NOT EXISTS valuesets (
    full_url      TEXT PRIMARY KEY,
    resource_type TEXT NOT NULL,
    id            TEXT NOT NULL,
    url           TEXT NOT NULL,
    resource      JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_valuesets_url ON valuesets (url);
`

type pgRow interface {
	Scan(dest ...any) error
}

// pgConn is the subset of *pgxpool.Pool the store needs.
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgRow
	Exec(ctx context.Context, sql string, args ...any) error
}

// PGStore is a PostgreSQL-backed Store.
type PGStore struct {
	db pgConn
}

// NewPGStore creates a store over db.
func NewPGStore(db pgConn) *PGStore {
	return &PGStore{db: db}
}

// NewPGStoreFromPool creates a store over a connection pool.
func NewPGStoreFromPool(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: &pgxPoolWrapper{pool: pool}}
}

// Connect opens a pool for dsn and applies the migration.
func Connect(ctx context.Context, dsn string) (*PGStore, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect value-set store: %w", err)
	}
	s := NewPGStoreFromPool(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// Migrate creates the valuesets table.
func (s *PGStore) Migrate(ctx context.Context) error {
	if err := s.db.Exec(ctx, MigrationValueSets); err != nil {
		return fmt.Errorf("migrate valuesets: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PGStore) Get(ctx context.Context, fullURL string) (*Entry, error) {
	const query = `SELECT full_url, resource_type, id, url, resource FROM valuesets WHERE full_url = $1`
	return s.scanEntry(ctx, query, fullURL)
}

// GetByURL implements Store.
func (s *PGStore) GetByURL(ctx context.Context, url string) (*Entry, error) {
	const query = `SELECT full_url, resource_type, id, url, resource FROM valuesets WHERE url = $1 LIMIT 1`
	return s.scanEntry(ctx, query, url)
}

func (s *PGStore) scanEntry(ctx context.Context, query, key string) (*Entry, error) {
	var (
		e        Entry
		resource []byte
	)
	err := s.db.QueryRow(ctx, query, key).Scan(&e.FullURL, &e.ResourceType, &e.ID, &e.URL, &resource)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", service.ErrNotFound, key)
		}
		return nil, fmt.Errorf("get value set %s: %w", key, err)
	}
	e.Resource = resource
	return &e, nil
}

// Put implements Store with upsert semantics.
func (s *PGStore) Put(ctx context.Context, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	const query = `INSERT INTO valuesets (full_url, resource_type, id, url, resource)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (full_url) DO UPDATE SET resource_type = EXCLUDED.resource_type,
                                     id            = EXCLUDED.id,
                                     url           = EXCLUDED.url,
                                     resource      = EXCLUDED.resource`
	if err := s.db.Exec(ctx, query, entry.FullURL, entry.ResourceType, entry.ID, entry.URL, []byte(entry.Resource)); err != nil {
		return fmt.Errorf("put value set %s: %w", entry.FullURL, err)
	}
	return nil
}

// Count implements Store.
func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM valuesets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count value sets: %w", err)
	}
	return n, nil
}

func isNoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "no rows")
}

// pgxPoolWrapper drops the command tag from Exec.
type pgxPoolWrapper struct {
	pool *pgxpool.Pool
}

func (w *pgxPoolWrapper) QueryRow(ctx context.Context, sql string, args ...any) pgRow {
	return w.pool.QueryRow(ctx, sql, args...)
}

func (w *pgxPoolWrapper) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := w.pool.Exec(ctx, sql, args...)
	return err
}

// Verify interface compliance
var _ Store = (*PGStore)(nil)
