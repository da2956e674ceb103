// Package sqlite is the default Config Store backend, on modernc.org/sqlite
// (pure Go, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lingyjava/page-parser/internal/siteconfig"
	"github.com/lingyjava/page-parser/internal/storage"
)

// Repo implements storage.Backend for SQLite.
//
// Key design points:
//   - SQLite has no native timestamp type. updated_at is stored as an
//     RFC3339Nano string for reliable round trips and easy debugging.
//   - A single connection serializes writers; SQLite would otherwise return
//     SQLITE_BUSY under concurrent writes.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(ctx, cfg.DSN)
	})
}

// New opens dsn and creates the table if missing.
func New(ctx context.Context, dsn string) (*Repo, error) {
	if dsn == "" {
		return nil, errors.New("sqlite: empty dsn")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table %s: %w", storage.Table, err)
	}
	return &Repo{db: db, now: time.Now}, nil
}

var (
	createTableSQL = `CREATE TABLE IF NOT EXISTS ` + storage.Table + ` (
	domain TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	selectors TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

	selectOneSQL = `SELECT name, selectors FROM ` + storage.Table + ` WHERE domain = ?`
	selectAllSQL = `SELECT domain, name, selectors FROM ` + storage.Table + ` ORDER BY domain`
	deleteSQL    = `DELETE FROM ` + storage.Table + ` WHERE domain = ?`

	// ON CONFLICT upsert needs SQLite >= 3.24; modernc bundles a newer one.
	upsertSQL = `INSERT INTO ` + storage.Table + ` (domain, name, selectors, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(domain) DO UPDATE SET name = excluded.name, selectors = excluded.selectors, updated_at = excluded.updated_at`
)

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) Get(ctx context.Context, domain string) (*siteconfig.Site, error) {
	var name, sel string
	err := r.db.QueryRowContext(ctx, selectOneSQL, domain).Scan(&name, &sel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return storage.DecodeSite(name, sel)
}

// execer is the part of *sql.DB and *sql.Tx that put needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repo) put(ctx context.Context, ex execer, domain string, site *siteconfig.Site) error {
	sel, err := storage.EncodeSelectors(site.Selectors)
	if err != nil {
		return err
	}
	ts := r.now().UTC().Format(time.RFC3339Nano)
	_, err = ex.ExecContext(ctx, upsertSQL, domain, site.Name, sel, ts)
	return err
}

func (r *Repo) Put(ctx context.Context, domain string, site *siteconfig.Site) error {
	return r.put(ctx, r.db, domain, site)
}

// PutAll writes the whole bundle in one transaction.
func (r *Repo) PutAll(ctx context.Context, b siteconfig.Bundle) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range b.Domains() {
		if err := r.put(ctx, tx, d, b[d]); err != nil {
			return fmt.Errorf("%s: %w", d, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) Delete(ctx context.Context, domain string) error {
	_, err := r.db.ExecContext(ctx, deleteSQL, domain)
	return err
}

func (r *Repo) All(ctx context.Context) (siteconfig.Bundle, error) {
	rows, err := r.db.QueryContext(ctx, selectAllSQL)
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
