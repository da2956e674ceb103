// Package postgres is the Postgres Config Store backend, on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lingyjava/page-parser/internal/siteconfig"
	"github.com/lingyjava/page-parser/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(ctx, cfg.DSN)
	})
}

/*
Repo implements storage.Backend for Postgres.

selectors is a TEXT column holding the JSON object. JSONB would reorder the
keys, and field order is part of a configuration.
*/
type Repo struct {
	pool *pgxpool.Pool
}

// New connects to dsn and creates the table if missing.
func New(ctx context.Context, dsn string) (*Repo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create table %s: %w", storage.Table, err)
	}
	return &Repo{pool: pool}, nil
}

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS ` + storage.Table + ` (
	domain TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	selectors TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	selectOneSQL = `SELECT name, selectors FROM ` + storage.Table + ` WHERE domain = $1`
	selectAllSQL = `SELECT domain, name, selectors FROM ` + storage.Table + ` ORDER BY domain`
	deleteSQL    = `DELETE FROM ` + storage.Table + ` WHERE domain = $1`

	upsertSQL = `INSERT INTO ` + storage.Table + ` (domain, name, selectors, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (domain) DO UPDATE SET name = EXCLUDED.name, selectors = EXCLUDED.selectors, updated_at = now()`
)

// Close closes the connection pool.
func (r *Repo) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repo) Get(ctx context.Context, domain string) (*siteconfig.Site, error) {
	var name, sel string
	err := r.pool.QueryRow(ctx, selectOneSQL, domain).Scan(&name, &sel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return storage.DecodeSite(name, sel)
}

// upsertArgs builds the arguments for upsertSQL.
func upsertArgs(domain string, site *siteconfig.Site) ([]any, error) {
	sel, err := storage.EncodeSelectors(site.Selectors)
	if err != nil {
		return nil, err
	}
	return []any{domain, site.Name, sel}, nil
}

func (r *Repo) Put(ctx context.Context, domain string, site *siteconfig.Site) error {
	args, err := upsertArgs(domain, site)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, upsertSQL, args...)
	return err
}

// PutAll sends every upsert as one batch inside a transaction.
func (r *Repo) PutAll(ctx context.Context, b siteconfig.Bundle) error {
	batch, err := buildUpsertBatch(b)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

func buildUpsertBatch(b siteconfig.Bundle) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for _, d := range b.Domains() {
		args, err := upsertArgs(d, b[d])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d, err)
		}
		batch.Queue(upsertSQL, args...)
	}
	return batch, nil
}

func (r *Repo) Delete(ctx context.Context, domain string) error {
	_, err := r.pool.Exec(ctx, deleteSQL, domain)
	return err
}

func (r *Repo) All(ctx context.Context) (siteconfig.Bundle, error) {
	rows, err := r.pool.Query(ctx, selectAllSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := siteconfig.Bundle{}
	for rows.Next() {
		var domain, name, sel string
		if err := rows.Scan(&domain, &name, &sel); err != nil {
			return nil, err
		}
		site, err := storage.DecodeSite(name, sel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", domain, err)
		}
		out[domain] = site
	}
	return out, rows.Err()
}
