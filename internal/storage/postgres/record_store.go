// Package postgres provides a Postgres-backed record store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "historic_sites"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// CreateTable issues CREATE TABLE IF NOT EXISTS on connect.
	CreateTable bool
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// RecordStore writes site records into Postgres. source_link is the primary
// key, so appends are idempotent.
type RecordStore struct {
	pool  pool
	table string
}

var _ crawler.RecordStore = (*RecordStore)(nil)

// New connects a pool and optionally creates the table.
func New(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if cfg.CreateTable {
		if err := store.EnsureSchema(ctx); err != nil {
			p.Close()
			return nil, err
		}
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*RecordStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: p, table: table}, nil
}

// EnsureSchema creates the records table if it does not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	source_link TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	aura_score  INTEGER NOT NULL,
	category    TEXT NOT NULL,
	description TEXT NOT NULL,
	latitude    DOUBLE PRECISION,
	longitude   DOUBLE PRECISION,
	price       TEXT NOT NULL,
	images      TEXT[] NOT NULL DEFAULT '{}',
	stored_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Append inserts a record. A row with the same source link is left alone.
func (s *RecordStore) Append(ctx context.Context, r crawler.Record) error {
	if r.SourceLink == "" {
		return fmt.Errorf("record source link is required")
	}
	images := r.Images
	if images == nil {
		images = []string{}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	source_link,
	title,
	aura_score,
	category,
	description,
	latitude,
	longitude,
	price,
	images
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (source_link) DO NOTHING`, s.table)

	if _, err := s.pool.Exec(ctx, query,
		r.SourceLink,
		r.Title,
		r.AuraScore,
		r.Category,
		r.Description,
		r.Latitude,
		r.Longitude,
		r.Price,
		images,
	); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Keys returns every stored source link.
func (s *RecordStore) Keys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT source_link FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("query source links: %w", err)
	}
	defer rows.Close()

	keys := map[string]struct{}{}
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scan source link: %w", err)
		}
		keys[link] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source links: %w", err)
	}
	return keys, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
