package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/checkout"
	"github.com/xenking/pandam-storefront/internal/domain/order"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "storefront.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKV(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "cartItems")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "cartItems", []byte(`[]`)))
	require.NoError(t, s.Put(ctx, "cartItems", []byte(`[{"productId":"P1"}]`)))

	v, ok, err := s.Get(ctx, "cartItems")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"productId":"P1"}]`, string(v))

	require.NoError(t, s.Delete(ctx, "cartItems"))
	_, ok, err = s.Get(ctx, "cartItems")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKV_BacksCartStorage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	storage := cart.NewKVStorage(s, cart.DeviceKey("dev-1"))

	lines := []cart.Line{{ProductID: "P1", Name: "Kola Urundai", Price: decimal.RequireFromString("199.50"), Weight: "500g", Quantity: 2}}
	require.NoError(t, storage.Save(ctx, lines))

	got, err := storage.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "199.5", got[0].Price.String())
	assert.Equal(t, 2, got[0].Quantity)

	// Another device is unaffected.
	other, err := cart.NewKVStorage(s, cart.DeviceKey("dev-2")).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestReceipts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Receipt(ctx, "u1", "o1")
	require.ErrorIs(t, err, order.ErrNotFound)

	p := order.Placed{
		ID:        "o1",
		Status:    order.StatusPending,
		CreatedAt: time.Date(2025, 1, 14, 10, 30, 0, 0, time.UTC),
		Order: order.Order{
			Items:         []order.Item{{ProductID: "P1", Price: decimal.NewFromInt(200), Quantity: 2}},
			TotalAmount:   decimal.NewFromInt(430),
			PaymentMethod: checkout.MethodCOD,
		},
	}
	require.NoError(t, s.SaveReceipt(ctx, "u1", p))

	p.Status = order.StatusProcessing
	require.NoError(t, s.SaveReceipt(ctx, "u1", p))

	got, err := s.Receipt(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Equal(t, "430", got.TotalAmount.String())
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Items, 1)
}

func TestReceipts_ScopedToOwner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := order.Placed{
		ID:     "o1",
		Status: order.StatusPending,
		Order: order.Order{
			TotalAmount:     decimal.NewFromInt(430),
			PaymentMethod:   checkout.MethodCOD,
			ShippingAddress: order.Address{Name: "Meena Raman", Phone: "9876543210"},
		},
	}
	require.NoError(t, s.SaveReceipt(ctx, "u1", p))

	_, err := s.Receipt(ctx, "u2", "o1")
	require.ErrorIs(t, err, order.ErrNotFound)
	_, err = s.Receipt(ctx, "", "o1")
	require.ErrorIs(t, err, order.ErrNotFound)

	// Another user saving under the same id does not take the receipt over.
	forged := p
	forged.ShippingAddress.Name = "Someone Else"
	require.NoError(t, s.SaveReceipt(ctx, "u2", forged))

	got, err := s.Receipt(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, "Meena Raman", got.ShippingAddress.Name)
	_, err = s.Receipt(ctx, "u2", "o1")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOpen_AddsReceiptOwner(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `DROP TABLE receipts`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `CREATE TABLE receipts (
		id TEXT PRIMARY KEY, status TEXT NOT NULL, total_amount TEXT NOT NULL,
		document BLOB NOT NULL, created_at TIMESTAMP NOT NULL)`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO receipts (id, status, total_amount, document, created_at) VALUES ('old', 'pending', '10', '{}', ?)`,
		time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Receipt(ctx, "", "old")
	require.ErrorIs(t, err, order.ErrNotFound)
	require.NoError(t, s.SaveReceipt(ctx, "u1", order.Placed{ID: "new", Status: order.StatusPending}))
	_, err = s.Receipt(ctx, "u1", "new")
	require.NoError(t, err)
}

func TestKV_WritesReturnNil(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	storage := cart.NewKVStorage(s, cart.DeviceKey("dev-1"))

	assert.Nil(t, s.Put(ctx, "k", []byte("v")))
	assert.Nil(t, s.Delete(ctx, "k"))
	assert.Nil(t, s.Delete(ctx, "missing"))
	assert.Nil(t, storage.Save(ctx, []cart.Line{{ProductID: "P1", Weight: "500g", Quantity: 1}}))
	assert.Nil(t, storage.Save(ctx, nil))
	assert.Nil(t, s.SaveReceipt(ctx, "u1", order.Placed{ID: "o1"}))
}
