package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/pandam-storefront/internal/domain/order"
)

const (
	saveReceiptSQL = `INSERT INTO receipts (id, owner, status, total_amount, document, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		total_amount = EXCLUDED.total_amount,
		document = EXCLUDED.document
	WHERE receipts.owner = EXCLUDED.owner`

	getReceiptSQL = `SELECT document, total_amount FROM receipts WHERE id = $1 AND owner = $2`
)

// SaveReceipt stores p for owner as a JSONB document. The total is kept in a
// NUMERIC column as well. A receipt owned by someone else is left untouched.
func (s *Store) SaveReceipt(ctx context.Context, owner string, p order.Placed) error {
	if owner == "" {
		return errors.Errorf("receipt %q has no owner", p.ID)
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.pool.Exec(ctx, saveReceiptSQL,
		p.ID, owner, string(p.Status), p.TotalAmount, order.EncodePlaced(p), created,
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
	var (
		doc   []byte
		total decimal.Decimal
	)
	err := s.pool.QueryRow(ctx, getReceiptSQL, id, owner).Scan(&doc, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get receipt %q", id)
	}

	p, err := order.DecodePlaced(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "receipt %q", id)
	}
	p.TotalAmount = total
	return p, nil
}
