package order

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/checkout"
	"github.com/xenking/pandam-storefront/internal/domain/pricing"
)

func TestBuild_ItemsSumToTotalLessFee(t *testing.T) {
	lines := []cart.Line{
		line("P1", "500g", 200, 2),
		line("P2", "250g", 95, 3),
		line("P3", "1kg", 410, 1),
	}
	lines[1].VariantIndex = -1

	for _, table := range []pricing.FeeTable{pricing.Simple, pricing.Tiered} {
		o := Build(lines, codForm(), table)

		require.Len(t, o.Items, len(lines))
		sum := decimal.Zero
		for _, it := range o.Items {
			sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		fee := table.Fee(sum)
		assert.True(t, o.TotalAmount.Sub(fee).Equal(sum), table.Name())
		assert.Equal(t, 0, o.Items[1].VariantIndex)
	}
}

func TestDetails(t *testing.T) {
	assert.Equal(t, PaymentDetails{UPIID: "meena@okbank"}, Details(checkout.UPI{ID: "meena@okbank"}))
	assert.Equal(t, PaymentDetails{Bank: "icici"}, Details(checkout.NetBanking{Bank: "icici"}))
	assert.Equal(t, PaymentDetails{CardLast4: "4242"}, Details(checkout.Card{Number: "4242424242424242"}))
	assert.Equal(t, PaymentDetails{}, Details(checkout.COD{}))
	assert.Equal(t, PaymentDetails{}, Details(nil))
}

func TestCountdown(t *testing.T) {
	clk := &clock{t: fixedNow}
	c := NewCountdown(DefaultWindow, clk.now)

	assert.Equal(t, "15:00", c.Clock())
	assert.False(t, c.Expired())

	clk.t = fixedNow.Add(14*time.Minute + 500*time.Millisecond)
	assert.Equal(t, "00:59", c.Clock())
	assert.Equal(t, 59*time.Second, c.Remaining())

	clk.t = fixedNow.Add(DefaultWindow - 400*time.Millisecond)
	assert.True(t, c.Expired(), "a sub-second remainder shows as 00:00 and blocks submission")

	clk.t = fixedNow.Add(time.Hour)
	assert.Equal(t, "00:00", c.Clock())
	assert.Zero(t, c.Remaining())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		kind Kind
	}{
		{"Stock availability error for product P1", KindStockUnavailable},
		{"Total amount mismatch", KindPriceMismatch},
		{"Invalid phone number format", KindInvalidPhone},
		{"Invalid email address", KindInvalidEmail},
		{"Invalid postal code", KindInvalidPostal},
		{"invalid email", KindGeneric},
		{"", KindGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, Classify(tt.msg), tt.msg)
	}
}

func TestNumberFor(t *testing.T) {
	assert.Equal(t, "C3D4E5F6", NumberFor("65a3f0c2e4b0a1b2c3d4e5f6"))
	assert.Equal(t, "AB12", NumberFor("ab12"))
}

type mockFetcher struct {
	orders map[string]Placed
	calls  int
}

func (m *mockFetcher) GetOrder(_ context.Context, id string) (*Placed, error) {
	m.calls++
	p, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func TestConfirmer(t *testing.T) {
	ctx := context.Background()
	local := Placed{ID: "local-00000001", Order: Order{PaymentMethod: checkout.MethodUPI,
		Items: []Item{{Price: decimal.NewFromInt(250), Quantity: 2}}}}
	remote := Placed{ID: "remote-0000002", Order: Order{PaymentMethod: checkout.MethodCOD,
		Items: []Item{{Price: decimal.NewFromInt(100), Quantity: 1}}}}

	receipts := &mockReceipts{saved: []Placed{local}, owners: []string{"u1"}}
	fetcher := &mockFetcher{orders: map[string]Placed{remote.ID: remote}}
	c := NewConfirmer(receipts, fetcher, pricing.Simple)
	c.now = func() time.Time { return fixedNow }

	p, conf, err := c.Confirm(ctx, "u1", local.ID)
	require.NoError(t, err)
	assert.Equal(t, local.ID, p.ID)
	assert.Equal(t, "00000001", conf.OrderNumber)
	assert.Equal(t, "Paid", conf.PaymentStatus)
	assert.Equal(t, "500", conf.Totals.Total.String())
	assert.Zero(t, fetcher.calls)

	_, conf, err = c.Confirm(ctx, "u1", remote.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pending", conf.PaymentStatus)
	assert.Equal(t, "130", conf.Totals.Total.String())
	assert.Equal(t, 1, fetcher.calls)

	_, _, err = c.Confirm(ctx, "u1", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	broken := NewConfirmer(&failingReceipts{}, fetcher, pricing.Simple)
	_, _, err = broken.Confirm(ctx, "u1", remote.ID)
	require.Error(t, err)
}

func TestConfirmer_OtherUsersReceipt(t *testing.T) {
	ctx := context.Background()
	mine := Placed{ID: "65a3f0c2e4b0d1a2b3c4d5e1", Order: Order{
		PaymentMethod:   checkout.MethodCOD,
		ShippingAddress: Address{Name: "Meena Raman", Phone: "9876543210", Email: "meena@example.com"},
	}}
	receipts := &mockReceipts{saved: []Placed{mine}, owners: []string{"u1"}}
	fetcher := &mockFetcher{orders: map[string]Placed{}}
	c := NewConfirmer(receipts, fetcher, pricing.Simple)

	for _, owner := range []string{"u2", ""} {
		_, _, err := c.Confirm(ctx, owner, mine.ID)
		require.ErrorIs(t, err, ErrNotFound, "owner %q", owner)
	}
	// Both lookups went to the backend, which decides on its own.
	assert.Equal(t, 2, fetcher.calls)
}

type failingReceipts struct{}

func (failingReceipts) SaveReceipt(context.Context, string, Placed) error { return nil }

func (failingReceipts) Receipt(context.Context, string, string) (*Placed, error) {
	return nil, errors.New("database is locked")
}

type mockLister struct {
	orders []Placed
	status Status
}

func (m *mockLister) ListOrders(_ context.Context, status Status) ([]Placed, error) {
	m.status = status
	return m.orders, nil
}

func TestHistory(t *testing.T) {
	var orders []Placed
	for i := range 12 {
		st := StatusPending
		if i%3 == 0 {
			st = StatusDelivered
		}
		orders = append(orders, Placed{ID: fmt.Sprintf("o-%02d", i), Status: st})
	}
	lister := &mockLister{orders: orders}
	h := NewHistory(lister)
	ctx := context.Background()

	page, err := h.Page(ctx, "", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 12, page.Total)
	require.Len(t, page.Orders, 5)
	assert.Equal(t, "o-00", page.Orders[0].ID)

	page, err = h.Page(ctx, "", 3)
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, "o-10", page.Orders[0].ID)

	page, err = h.Page(ctx, "", 4)
	require.NoError(t, err)
	assert.Empty(t, page.Orders)

	page, err = h.Page(ctx, StatusDelivered, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, lister.status)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 1, page.TotalPages)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("All")
	require.NoError(t, err)
	assert.Empty(t, st)

	st, err = ParseStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseStatus("lost")
	require.Error(t, err)
}
