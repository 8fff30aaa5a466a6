// Package sqlite keeps device carts and order receipts in an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/order"
)

const schema = `
CREATE TABLE IF NOT EXISTS device_kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS receipts (
	id           TEXT PRIMARY KEY,
	owner        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	total_amount TEXT NOT NULL,
	document     BLOB NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
`

var (
	_ cart.KV            = (*Store)(nil)
	_ order.ReceiptStore = (*Store)(nil)
)

// Store is safe for concurrent use. Writes are serialized through a single
// connection.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at dsn, e.g. "storefront.db"
// or "file::memory:?cache=shared", and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	if err := addReceiptOwner(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// addReceiptOwner upgrades receipts tables created without the owner column.
// Receipts without an owner are never returned.
func addReceiptOwner(ctx context.Context, db *sql.DB) error {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('receipts') WHERE name = 'owner'`,
	).Scan(&n)
	if err != nil {
		return errors.Wrap(err, "inspect receipts")
	}
	if n > 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, `ALTER TABLE receipts ADD COLUMN owner TEXT NOT NULL DEFAULT ''`); err != nil {
		return errors.Wrap(err, "add receipts owner")
	}
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM device_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %q", key)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "put %q", key)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM device_kv WHERE key = ?`, key)
	if err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}

// SaveReceipt stores p for owner, replacing an earlier copy with the same id
// unless that copy belongs to someone else.
func (s *Store) SaveReceipt(ctx context.Context, owner string, p order.Placed) error {
	if owner == "" {
		return errors.Errorf("receipt %q has no owner", p.ID)
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO receipts (id, owner, status, total_amount, document, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			total_amount = excluded.total_amount,
			document = excluded.document
		WHERE receipts.owner = excluded.owner`,
		p.ID, owner, string(p.Status), p.TotalAmount.String(), order.EncodePlaced(p), created.UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "save receipt %q", p.ID)
	}
	return nil
}

// Receipt returns owner's stored order, or order.ErrNotFound.
func (s *Store) Receipt(ctx context.Context, owner, id string) (*order.Placed, error) {
	if owner == "" {
		return nil, order.ErrNotFound
	}
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM receipts WHERE id = ? AND owner = ?`, id, owner,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get receipt %q", id)
	}
	return order.DecodePlaced(doc)
}
