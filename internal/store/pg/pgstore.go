// Package pg persists engine snapshots and archives posted transfers in
// PostgreSQL through the pgx database/sql driver.
package pg

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bankmesh.org/internal/engine"
	"bankmesh.org/internal/ids"
	"bankmesh.org/internal/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrNoSnapshot = errors.New("no snapshot stored")

const defaultKeep = 20

type Store struct {
	db   *sql.DB
	keep int
}

type Option func(*Store)

// WithKeep bounds how many snapshots survive each save.
func WithKeep(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.keep = n
		}
	}
}

func Open(dsn string, maxOpen int, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db, opts...), nil
}

// New wraps an existing handle.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, keep: defaultKeep}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrations exposes the embedded schema for the migrate command.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	return migrate.NewManager(s.db, Migrations()).Up(ctx)
}

// Save stores snap and prunes all but the newest snapshots.
func (s *Store) Save(ctx context.Context, snap engine.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into engine_snapshots(id, taken_at, payload)
		values ($1, $2, $3)
	`, ids.At(snap.TakenAt), snap.TakenAt.UTC(), payload); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		delete from engine_snapshots
		where id not in (
			select id from engine_snapshots order by taken_at desc, id desc limit $1
		)
	`, s.keep); err != nil {
		return err
	}
	return tx.Commit()
}

// Latest returns the newest stored snapshot.
func (s *Store) Latest(ctx context.Context) (engine.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		select payload from engine_snapshots
		order by taken_at desc, id desc
		limit 1
	`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return engine.Snapshot{}, err
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
