// Package order builds, submits and follows up on customer orders.
package order

import (
	"context"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/pandam-storefront/internal/domain/checkout"
)

// Item is an order line as submitted to the backend.
type Item struct {
	ProductID    string
	Name         string
	Price        decimal.Decimal
	Quantity     int
	Weight       string
	Image        string
	VariantIndex int
	WeightIndex  int
}

// Amount is price × quantity.
func (i Item) Amount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Address is the shipping address in backend shape.
type Address struct {
	Name       string
	Street     string
	City       string
	State      string
	PostalCode string
	Phone      string
	Email      string
}

// PaymentDetails is the method-specific part of the payment that may be
// stored. Only one field is set; COD sets none.
type PaymentDetails struct {
	CardLast4 string
	UPIID     string
	Bank      string
}

// Order is the submitted payload.
type Order struct {
	Items           []Item
	ShippingAddress Address
	TotalAmount     decimal.Decimal
	PaymentMethod   checkout.Method
	PaymentDetails  PaymentDetails
}

// Status of a placed order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every order status in lifecycle order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// Placed is an order as returned by the backend.
type Placed struct {
	Order

	ID        string
	Status    Status
	CreatedAt time.Time
}

// InventoryUpdate reports per-line stock decrements that failed after the
// order itself was created.
type InventoryUpdate struct {
	Failed  int
	Details jx.Raw
}

// Response is the backend reply to an order submission.
type Response struct {
	Success         bool
	Order           *Placed
	Error           string
	InventoryUpdate *InventoryUpdate
}

// Submitter sends an order to the backend. A non-nil error means the call
// itself failed; a rejected order comes back as Response.Success=false.
type Submitter interface {
	PlaceOrder(ctx context.Context, o Order) (*Response, error)
}

// Fetcher loads a placed order by id.
type Fetcher interface {
	GetOrder(ctx context.Context, id string) (*Placed, error)
}

// Lister lists the signed-in user's orders. An empty status lists all.
type Lister interface {
	ListOrders(ctx context.Context, status Status) ([]Placed, error)
}

// ReceiptStore keeps a local copy of placed orders, keyed by order id and
// owning user id. Receipt returns ErrNotFound when the order belongs to
// someone else.
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, owner string, p Placed) error
	Receipt(ctx context.Context, owner, id string) (*Placed, error)
}
