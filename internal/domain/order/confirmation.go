package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/pandam-storefront/internal/domain/checkout"
	"github.com/xenking/pandam-storefront/internal/domain/pricing"
)

// Shipping estimates, counted from when the confirmation is shown.
const (
	ShippingDays = 1
	DeliveryDays = 2
)

// Confirmation is what the order confirmation view shows.
type Confirmation struct {
	OrderNumber       string
	Totals            pricing.Totals
	PaymentStatus     string
	EstimatedShipping time.Time
	EstimatedDelivery time.Time
}

// NumberFor is the short order number shown to shoppers: the last eight
// characters of the id, upper-cased.
func NumberFor(id string) string {
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}

// PaymentStatusFor is "Pending" for cash on delivery and "Paid" otherwise.
func PaymentStatusFor(m checkout.Method) string {
	if m == checkout.MethodCOD {
		return "Pending"
	}
	return "Paid"
}

// NewConfirmation derives the confirmation view of p as of now.
func NewConfirmation(p Placed, now time.Time, table pricing.FeeTable) Confirmation {
	return Confirmation{
		OrderNumber:       NumberFor(p.ID),
		Totals:            pricing.Compute(p.Items, table),
		PaymentStatus:     PaymentStatusFor(p.PaymentMethod),
		EstimatedShipping: now.AddDate(0, 0, ShippingDays),
		EstimatedDelivery: now.AddDate(0, 0, DeliveryDays),
	}
}

// Confirmer builds confirmations for orders identified only by id, preferring
// the local receipt over a backend round trip.
type Confirmer struct {
	receipts ReceiptStore
	fetcher  Fetcher
	table    pricing.FeeTable
	now      func() time.Time
}

// NewConfirmer returns a Confirmer. receipts may be nil.
func NewConfirmer(receipts ReceiptStore, fetcher Fetcher, table pricing.FeeTable) *Confirmer {
	return &Confirmer{receipts: receipts, fetcher: fetcher, table: table, now: time.Now}
}

// Confirm loads order id on behalf of user owner and returns it with its
// confirmation. Receipts saved for another user are never returned; the
// backend decides whether owner may see the order.
func (c *Confirmer) Confirm(ctx context.Context, owner, id string) (*Placed, Confirmation, error) {
	if c.receipts != nil && owner != "" {
		p, err := c.receipts.Receipt(ctx, owner, id)
		switch {
		case err == nil:
			return p, NewConfirmation(*p, c.now(), c.table), nil
		case !errors.Is(err, ErrNotFound):
			return nil, Confirmation{}, errors.Wrap(err, "load receipt")
		}
	}
	p, err := c.fetcher.GetOrder(ctx, id)
	if err != nil {
		return nil, Confirmation{}, errors.Wrap(err, "fetch order")
	}
	return p, NewConfirmation(*p, c.now(), c.table), nil
}
