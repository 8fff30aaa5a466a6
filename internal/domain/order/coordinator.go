package order

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/checkout"
	"github.com/xenking/pandam-storefront/internal/domain/notify"
	"github.com/xenking/pandam-storefront/internal/domain/pricing"
	"github.com/xenking/pandam-storefront/internal/domain/session"
)

// State of a checkout session.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Cart is the part of the cart store a checkout needs.
type Cart interface {
	Lines() []cart.Line
	Clear(ctx context.Context, remote bool) error
}

var _ Cart = (*cart.Store)(nil)

// Result is handed to the confirmation view after a successful submission.
type Result struct {
	Order        Placed
	Confirmation Confirmation
	// InventoryFailed counts lines whose stock decrement failed.
	InventoryFailed int
}

// Warning reports a partial success.
func (r *Result) Warning() bool { return r.InventoryFailed > 0 }

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDirect makes the checkout a buy-now checkout of lines. The cart store is
// still cleared locally on success but its contents are not ordered, and the
// backend cart is left alone.
func WithDirect(lines []cart.Line) Option {
	return func(c *Coordinator) {
		c.direct = true
		c.directLines = append([]cart.Line(nil), lines...)
	}
}

// WithWindow sets the payment window length.
func WithWindow(d time.Duration) Option {
	return func(c *Coordinator) { c.window = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithFeeTable sets the delivery fee table used for the submitted total.
func WithFeeTable(t pricing.FeeTable) Option {
	return func(c *Coordinator) { c.table = t }
}

// WithNotifier sets where user-visible messages go.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithReceipts records placed orders locally.
func WithReceipts(r ReceiptStore) Option {
	return func(c *Coordinator) { c.receipts = r }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(c *Coordinator) { c.lg = lg }
}

// Coordinator drives one checkout session from form entry to a placed order.
//
// States move Idle → Validating → Submitting → Succeeded or Failed. Invalid
// input returns to Idle; a Failed submission may be retried by calling Submit
// again while the payment window is open.
type Coordinator struct {
	id          string
	cart        Cart
	direct      bool
	directLines []cart.Line
	submitter   Submitter
	session     *session.Session
	countdown   *Countdown

	window   time.Duration
	now      func() time.Time
	table    pricing.FeeTable
	notifier notify.Notifier
	receipts ReceiptStore
	lg       *zap.Logger

	mu      sync.Mutex
	state   State
	lastErr error
	result  *Result
}

// NewCoordinator starts a checkout session. The payment window starts now.
func NewCoordinator(c Cart, submitter Submitter, sess *session.Session, opts ...Option) *Coordinator {
	co := &Coordinator{
		id:        uuid.New().String(),
		cart:      c,
		submitter: submitter,
		session:   sess,
		window:    DefaultWindow,
		now:       time.Now,
		table:     pricing.Default,
		notifier:  notify.Nop,
		lg:        zap.NewNop(),
		state:     StateIdle,
	}
	for _, o := range opts {
		o(co)
	}
	co.countdown = NewCountdown(co.window, co.now)
	return co
}

// ID identifies the checkout session.
func (c *Coordinator) ID() string { return c.id }

// Direct reports whether this is a buy-now checkout.
func (c *Coordinator) Direct() bool { return c.direct }

// Countdown is the session's payment window.
func (c *Coordinator) Countdown() *Countdown { return c.countdown }

// State returns the current state and the error that caused Failed, if any.
func (c *Coordinator) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastErr
}

// Result returns the placed order once the session has succeeded.
func (c *Coordinator) Result() (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.result != nil
}

// Lines returns what would be ordered right now.
func (c *Coordinator) Lines() []cart.Line {
	if c.direct {
		return append([]cart.Line(nil), c.directLines...)
	}
	return c.cart.Lines()
}

// Totals prices the current lines with the checkout fee table.
func (c *Coordinator) Totals() pricing.Totals {
	return pricing.Compute(c.Lines(), c.table)
}

// Submit validates form and places the order.
//
// Expiry, invalid input, an empty cart and a signed-out session are all
// rejected before any network call. The cart is cleared only after the
// backend confirms the order.
func (c *Coordinator) Submit(ctx context.Context, form checkout.Form) (*Result, error) {
	c.mu.Lock()
	switch c.state {
	case StateValidating, StateSubmitting:
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	case StateSucceeded:
		c.mu.Unlock()
		return nil, ErrAlreadyPlaced
	}
	if c.countdown.Expired() {
		c.state, c.lastErr = StateFailed, ErrPaymentWindowExpired
		c.mu.Unlock()
		c.notify(ctx, notify.Error, "Payment time expired. Please refresh and try again.")
		return nil, ErrPaymentWindowExpired
	}
	c.state, c.lastErr = StateValidating, nil
	c.mu.Unlock()

	lines := c.Lines()
	if len(lines) == 0 {
		c.setState(StateIdle, nil)
		return nil, ErrEmptyCart
	}
	if errs := checkout.Validate(form); !errs.Valid() {
		c.setState(StateIdle, nil)
		c.notify(ctx, notify.Error, "Please fill all required fields correctly")
		return nil, &ValidationError{Errors: errs}
	}
	if c.session == nil || !c.session.Authenticated() {
		c.setState(StateFailed, ErrSignInRequired)
		c.notify(ctx, notify.Error, "Please sign in to complete your order")
		return nil, ErrSignInRequired
	}

	o := Build(lines, form, c.table)
	c.setState(StateSubmitting, nil)

	lg := c.lg.With(zap.String("checkout_id", c.id))
	lg.Info("Submitting order",
		zap.Int("items", len(o.Items)),
		zap.Stringer("total", o.TotalAmount),
		zap.String("payment_method", string(o.PaymentMethod)),
		zap.Bool("direct", c.direct),
	)

	resp, err := c.submitter.PlaceOrder(ctx, o)
	switch {
	case err != nil:
	case resp == nil:
		err = errors.New("empty order response")
	case !resp.Success:
		msg := resp.Error
		if msg == "" {
			msg = "Failed to create order"
		}
		err = &RemoteError{StatusCode: 200, Message: msg}
	case resp.Order == nil:
		err = errors.New("backend accepted order without returning it")
	}
	if err != nil {
		serr := submitError(err)
		lg.Warn("Order submission failed", zap.String("kind", string(serr.Kind)), zap.Error(err))
		c.setState(StateFailed, serr)
		c.notify(ctx, notify.Error, serr.UserMessage())
		return nil, serr
	}

	placed := *resp.Order
	res := &Result{Order: placed}
	if inv := resp.InventoryUpdate; inv != nil && inv.Failed > 0 {
		res.InventoryFailed = inv.Failed
		lg.Warn("Inventory update partially failed",
			zap.Int("failed", inv.Failed),
			zap.ByteString("details", inv.Details),
		)
		c.notify(ctx, notify.Warning, "Order placed successfully, but some inventory updates failed. Please contact support.")
	}

	// The order stands regardless of what happens from here on.
	if err := c.cart.Clear(ctx, !c.direct); err != nil {
		lg.Error("Clear cart after order", zap.String("order_id", placed.ID), zap.Error(err))
	}
	if u, ok := c.session.User(); ok && c.receipts != nil {
		if err := c.receipts.SaveReceipt(ctx, u.ID, placed); err != nil {
			lg.Warn("Save receipt", zap.String("order_id", placed.ID), zap.Error(err))
		}
	}
	res.Confirmation = NewConfirmation(placed, c.now(), c.table)

	c.mu.Lock()
	c.state, c.lastErr, c.result = StateSucceeded, nil, res
	c.mu.Unlock()

	lg.Info("Order placed", zap.String("order_id", placed.ID), zap.Bool("partial", res.Warning()))
	return res, nil
}

func (c *Coordinator) setState(s State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, c.lastErr = s, err
}

func (c *Coordinator) notify(ctx context.Context, level notify.Level, msg string) {
	c.notifier.Notify(ctx, notify.Notification{Level: level, Message: msg})
}
