package handler

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/notify"
	"github.com/xenking/pandam-storefront/internal/domain/order"
	"github.com/xenking/pandam-storefront/internal/domain/pricing"
	"github.com/xenking/pandam-storefront/internal/domain/session"
)

// Backend is everything a device needs from the storefront backend.
type Backend interface {
	cart.Remote
	order.Submitter
	order.Fetcher
	order.Lister
}

// BackendFactory returns a backend client authenticating with tokens.
type BackendFactory func(tokens session.TokenSource) (Backend, error)

// Device is the state kept for one shopper device: its session, cart,
// notification inbox and open checkouts.
type Device struct {
	ID      string
	Session *session.Session
	Cart    *cart.Store
	Inbox   *notify.Inbox
	Backend Backend

	reg *Registry

	mu        sync.Mutex
	lastSeen  time.Time
	checkouts map[string]*order.Coordinator
}

// StartCheckout opens a checkout session over the cart, or over direct when
// it is non-empty.
func (d *Device) StartCheckout(direct []cart.Line) *order.Coordinator {
	opts := []order.Option{
		order.WithWindow(d.reg.window),
		order.WithClock(d.reg.now),
		order.WithFeeTable(d.reg.table),
		order.WithNotifier(d.Inbox),
		order.WithLogger(d.reg.lg.With(zap.String("device_id", d.ID))),
	}
	if d.reg.receipts != nil {
		opts = append(opts, order.WithReceipts(d.reg.receipts))
	}
	if len(direct) > 0 {
		opts = append(opts, order.WithDirect(direct))
	}
	co := order.NewCoordinator(d.Cart, d.Backend, d.Session, opts...)

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, c := range d.checkouts {
		if st, _ := c.State(); st != order.StateSubmitting && c.Countdown().Expired() {
			delete(d.checkouts, id)
		}
	}
	d.checkouts[co.ID()] = co
	return co
}

// Checkout returns an open checkout session.
func (d *Device) Checkout(id string) (*order.Coordinator, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	co, ok := d.checkouts[id]
	return co, ok
}

func (d *Device) touch(now time.Time) {
	d.mu.Lock()
	d.lastSeen = now
	d.mu.Unlock()
}

func (d *Device) idleSince(now time.Time) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return now.Sub(d.lastSeen)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithWindow sets the checkout payment window.
func WithWindow(d time.Duration) RegistryOption {
	return func(r *Registry) { r.window = d }
}

// WithFeeTable sets the delivery fee table.
func WithFeeTable(t pricing.FeeTable) RegistryOption {
	return func(r *Registry) { r.table = t }
}

// WithMergePolicy sets how carts merge on sign-in.
func WithMergePolicy(p cart.MergePolicy) RegistryOption {
	return func(r *Registry) { r.policy = p }
}

// WithSyncTimeout bounds each remote cart call.
func WithSyncTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.syncTimeout = d }
}

// WithIdleTTL evicts devices unseen for d.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTTL = d }
}

// WithReceipts records placed orders.
func WithReceipts(s order.ReceiptStore) RegistryOption {
	return func(r *Registry) { r.receipts = s }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) RegistryOption {
	return func(r *Registry) { r.lg = lg }
}

// WithTelemetry sets the providers handed to cart stores.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) RegistryOption {
	return func(r *Registry) {
		r.tracerProvider = tp
		r.meterProvider = mp
	}
}

// Registry owns the live devices. A device is created on first use from its
// persisted cart and evicted after it has been idle for the configured TTL.
type Registry struct {
	kv         cart.KV
	newBackend BackendFactory
	receipts   order.ReceiptStore

	window         time.Duration
	table          pricing.FeeTable
	policy         cart.MergePolicy
	syncTimeout    time.Duration
	idleTTL        time.Duration
	now            func() time.Time
	lg             *zap.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu      sync.Mutex
	devices map[string]*Device
}

// NewRegistry returns an empty registry persisting carts in kv.
func NewRegistry(kv cart.KV, newBackend BackendFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		kv:             kv,
		newBackend:     newBackend,
		window:         order.DefaultWindow,
		table:          pricing.Default,
		syncTimeout:    10 * time.Second,
		idleTTL:        30 * time.Minute,
		now:            time.Now,
		lg:             zap.NewNop(),
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		devices:        map[string]*Device{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Device returns the device with id, loading it on first use.
func (r *Registry) Device(ctx context.Context, id string) (*Device, error) {
	if id == "" {
		return nil, errors.New("empty device id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devices[id]; ok {
		d.touch(r.now())
		return d, nil
	}

	d, err := r.open(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "open device %q", id)
	}
	r.devices[id] = d
	return d, nil
}

func (r *Registry) open(ctx context.Context, id string) (*Device, error) {
	sess := session.New()
	b, err := r.newBackend(sess)
	if err != nil {
		return nil, errors.Wrap(err, "backend client")
	}
	inbox := notify.NewInbox(32)
	lg := r.lg.With(zap.String("device_id", id))

	store, err := cart.NewStore(ctx, cart.NewKVStorage(r.kv, cart.DeviceKey(id)), b, sess,
		cart.WithLogger(lg),
		cart.WithNotifier(inbox),
		cart.WithMergePolicy(r.policy),
		cart.WithSyncTimeout(r.syncTimeout),
		cart.WithTracerProvider(r.tracerProvider),
		cart.WithMeterProvider(r.meterProvider),
	)
	if err != nil {
		return nil, err
	}
	lg.Debug("Device opened", zap.Int("lines", store.Len()))

	return &Device{
		ID:        id,
		Session:   sess,
		Cart:      store,
		Inbox:     inbox,
		Backend:   b,
		reg:       r,
		lastSeen:  r.now(),
		checkouts: map[string]*order.Coordinator{},
	}, nil
}

// Len is the number of live devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Evict closes devices idle for at least the TTL whose cart has no remote
// calls outstanding, and returns how many went.
func (r *Registry) Evict() int {
	now := r.now()

	r.mu.Lock()
	var idle []*Device
	for id, d := range r.devices {
		// Devices still syncing their cart wait for the next sweep.
		if d.idleSince(now) >= r.idleTTL && d.Cart.Pending() == 0 {
			idle = append(idle, d)
			delete(r.devices, id)
		}
	}
	r.mu.Unlock()

	for _, d := range idle {
		d.Cart.Close()
	}
	return len(idle)
}

// Run evicts idle devices until ctx is done, then closes the rest.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(max(r.idleTTL/4, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return nil
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				r.lg.Debug("Evicted idle devices", zap.Int("count", n))
			}
		}
	}
}

// Close drains every device's pending cart sync and forgets it.
func (r *Registry) Close() {
	r.mu.Lock()
	devices := r.devices
	r.devices = map[string]*Device{}
	r.mu.Unlock()

	for _, d := range devices {
		d.Cart.Close()
	}
}
