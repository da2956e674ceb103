// Package mssql is the SQL Server Config Store backend.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/lingyjava/page-parser/internal/siteconfig"
	"github.com/lingyjava/page-parser/internal/storage"
)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(ctx, cfg.DSN)
	})
}

// Repo implements storage.Backend for SQL Server.
//
// Upserts use MERGE ... WITH (HOLDLOCK) so concurrent writers of the same
// domain serialize without table-wide locks.
type Repo struct {
	db dbConn
}

// New opens dsn with the "sqlserver" driver, validates connectivity and
// creates the table if missing.
func New(ctx context.Context, dsn string) (*Repo, error) {
	raw, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if _, err := raw.ExecContext(ctx, createTableSQL); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("create table %s: %w", storage.Table, err)
	}
	return &Repo{db: &sqlDB{db: raw}}, nil
}

const (
	tableIdent = "dbo." + storage.Table

	createTableSQL = `IF OBJECT_ID(N'` + tableIdent + `', N'U') IS NULL
BEGIN
	CREATE TABLE ` + tableIdent + ` (
		domain NVARCHAR(253) NOT NULL PRIMARY KEY,
		name NVARCHAR(400) NOT NULL,
		selectors NVARCHAR(MAX) NOT NULL,
		updated_at DATETIME2 NOT NULL
	);
END`

	selectOneSQL = `SELECT name, selectors FROM ` + tableIdent + ` WHERE domain = @p1`
	selectAllSQL = `SELECT domain, name, selectors FROM ` + tableIdent + ` ORDER BY domain`
	deleteSQL    = `DELETE FROM ` + tableIdent + ` WHERE domain = @p1`

	mergeSQL = `MERGE ` + tableIdent + ` WITH (HOLDLOCK) AS t
USING (SELECT @p1 AS domain, @p2 AS name, @p3 AS selectors) AS s
ON t.domain = s.domain
WHEN MATCHED THEN
	UPDATE SET name = s.name, selectors = s.selectors, updated_at = SYSUTCDATETIME()
WHEN NOT MATCHED THEN
	INSERT (domain, name, selectors, updated_at) VALUES (s.domain, s.name, s.selectors, SYSUTCDATETIME());`
)

// Close releases database resources held by this repository.
func (r *Repo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

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

func merge(ctx context.Context, ex execer, domain string, site *siteconfig.Site) error {
	sel, err := storage.EncodeSelectors(site.Selectors)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, mergeSQL, domain, site.Name, sel)
	return err
}

func (r *Repo) Put(ctx context.Context, domain string, site *siteconfig.Site) error {
	return merge(ctx, r.db, domain, site)
}

// PutAll merges every entry inside one transaction.
func (r *Repo) PutAll(ctx context.Context, b siteconfig.Bundle) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, d := range b.Domains() {
		if err = merge(ctx, tx, d, b[d]); err != nil {
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

// ---- database/sql seam types ----

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	execer
	QueryRowContext(ctx context.Context, query string, args ...any) rowScanner
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx.
type txConn interface {
	execer
	Commit() error
	Rollback() error
}

// rowScanner is a narrow adapter over *sql.Row.Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

// sqlDB wraps *sql.DB to implement dbConn.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *sqlDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

var _ dbConn = (*sqlDB)(nil)
