package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/pandam-storefront/internal/domain/notify"
	"github.com/xenking/pandam-storefront/internal/domain/session"
)

var (
	// ErrLineNotFound is returned when no line matches the product and weight.
	ErrLineNotFound = errors.New("cart line not found")

	errQueueClosed = errors.New("cart store closed")
)

// Remote is the backend copy of a signed-in user's cart.
type Remote interface {
	Fetch(ctx context.Context) ([]Line, error)
	// Upsert creates or updates the line and returns its server id.
	Upsert(ctx context.Context, line Line) (string, error)
	UpdateQuantity(ctx context.Context, serverID string, quantity int) error
	Delete(ctx context.Context, serverID string) error
	Clear(ctx context.Context) error
}

// MergePolicy decides how a fetched remote cart combines with local lines on
// sign-in.
type MergePolicy int

const (
	// MergeReplace discards local lines in favour of the remote snapshot.
	MergeReplace MergePolicy = iota
	// MergeKeepGuest starts from the remote snapshot and overlays lines that
	// were added while signed out, pushing them to the backend.
	MergeKeepGuest
)

// ParseMergePolicy maps "replace" and "keep-guest" to a policy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "", "replace":
		return MergeReplace, nil
	case "keep-guest":
		return MergeKeepGuest, nil
	default:
		return 0, errors.Errorf("unknown merge policy %q", s)
	}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for sync failures.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Store) { s.lg = lg }
}

// WithNotifier sets where user-visible failures go.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithMeterProvider sets the provider for sync counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Store) { s.meterProvider = mp }
}

// WithTracerProvider sets the provider for sync spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) { s.tracerProvider = tp }
}

// WithSyncTimeout bounds each remote call.
func WithSyncTimeout(d time.Duration) Option {
	return func(s *Store) { s.syncTimeout = d }
}

// WithMergePolicy sets the sign-in merge policy.
func WithMergePolicy(p MergePolicy) Option {
	return func(s *Store) { s.policy = p }
}

// Store owns the cart lines of one shopper.
//
// Every mutation is written to the LocalStore before it returns. When the
// session is signed in, the matching remote call is queued and runs in the
// background; remote calls for one Store never overlap and run in mutation
// order. Remote failures are logged and reported through the notifier, they
// are never returned to the caller.
type Store struct {
	local   LocalStore
	remote  Remote
	session *session.Session

	lg             *zap.Logger
	notifier       notify.Notifier
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	syncTimeout    time.Duration
	policy         MergePolicy

	tracer  trace.Tracer
	syncOps metric.Int64Counter
	queue   *syncQueue

	mu    sync.Mutex
	lines []Line
	// detached holds server ids returned for lines removed before their
	// upsert finished, so the queued delete can still target them.
	detached map[Key]string
}

// NewStore loads the persisted cart and subscribes to sess sign-in and
// sign-out. remote may be nil for a device-only cart.
func NewStore(ctx context.Context, local LocalStore, remote Remote, sess *session.Session, opts ...Option) (*Store, error) {
	s := &Store{
		local:          local,
		remote:         remote,
		session:        sess,
		lg:             zap.NewNop(),
		notifier:       notify.Nop,
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
		syncTimeout:    10 * time.Second,
		detached:       map[Key]string{},
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	s.syncOps, err = s.meterProvider.Meter("storefront/cart").Int64Counter("storefront.cart.sync.operations",
		metric.WithDescription("Remote cart sync calls by operation and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create sync counter")
	}
	s.tracer = s.tracerProvider.Tracer("storefront/cart")

	lines, err := local.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load local cart")
	}
	s.lines = normalize(lines)

	s.queue = newSyncQueue(s.execute)

	if sess != nil {
		sess.OnSignIn(func(ctx context.Context, _ session.User) {
			if err := s.MergeOnAuthentication(ctx); err != nil {
				s.lg.Error("Merge cart on sign-in", zap.Error(err))
			}
		})
		sess.OnSignOut(func(ctx context.Context) {
			if err := s.detach(ctx); err != nil {
				s.lg.Error("Detach cart on sign-out", zap.Error(err))
			}
		})
	}
	return s, nil
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.lines)
}

// Len is the number of distinct lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Count is the total quantity across lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// AddOrUpdate sets the quantity of the line with the same product and weight,
// or appends line when there is none.
func (s *Store) AddOrUpdate(ctx context.Context, line Line) error {
	line.Quantity = ClampQuantity(line.Quantity)
	line.ServerID = ""

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutateLocked(ctx, func() {
		if i := s.indexLocked(line.Key()); i >= 0 {
			s.lines[i].Quantity = line.Quantity
			return
		}
		s.lines = append(s.lines, line)
	})
	if err != nil {
		return err
	}
	s.enqueueLocked(ctx, "upsert", s.upsertOp(line.Key()))
	return nil
}

// AddOne increments the matching line by one, or appends line with quantity 1.
func (s *Store) AddOne(ctx context.Context, line Line) error {
	line.Quantity = MinQuantity
	line.ServerID = ""

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.indexLocked(line.Key()) >= 0
	err := s.mutateLocked(ctx, func() {
		if i := s.indexLocked(line.Key()); i >= 0 {
			s.lines[i].Quantity = ClampQuantity(s.lines[i].Quantity + 1)
			return
		}
		s.lines = append(s.lines, line)
	})
	if err != nil {
		return err
	}
	if existing {
		s.enqueueLocked(ctx, "update", s.quantityOp(line.Key()))
	} else {
		s.enqueueLocked(ctx, "upsert", s.upsertOp(line.Key()))
	}
	return nil
}

// ChangeQuantity adds delta to the line's quantity, clamped to
// [MinQuantity, MaxQuantity], and returns the updated line.
func (s *Store) ChangeQuantity(ctx context.Context, productID, weight string, delta int) (Line, error) {
	key := Key{ProductID: productID, Weight: weight}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(key)
	if i < 0 {
		return Line{}, ErrLineNotFound
	}
	next := ClampQuantity(s.lines[i].Quantity + delta)
	if next == s.lines[i].Quantity {
		return s.lines[i], nil
	}
	if err := s.mutateLocked(ctx, func() { s.lines[i].Quantity = next }); err != nil {
		return Line{}, err
	}
	s.enqueueLocked(ctx, "update", s.quantityOp(key))
	return s.lines[i], nil
}

// Remove deletes the line.
func (s *Store) Remove(ctx context.Context, productID, weight string) error {
	key := Key{ProductID: productID, Weight: weight}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(key)
	if i < 0 {
		return ErrLineNotFound
	}
	serverID := s.lines[i].ServerID
	err := s.mutateLocked(ctx, func() {
		s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
	})
	if err != nil {
		return err
	}
	s.enqueueLocked(ctx, "delete", s.deleteOp(key, serverID))
	return nil
}

// Clear empties the cart locally, and on the backend when remote is true and
// the session is signed in.
func (s *Store) Clear(ctx context.Context, remote bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutateLocked(ctx, func() { s.lines = nil }); err != nil {
		return err
	}
	if remote {
		s.enqueueLocked(ctx, "clear", s.clearOp())
	}
	return nil
}

// MergeOnAuthentication fetches the backend cart and combines it with the
// local lines according to the merge policy. A failed fetch leaves the local
// cart untouched. Only local persistence errors are returned.
func (s *Store) MergeOnAuthentication(ctx context.Context) error {
	if s.remote == nil || s.session == nil || !s.session.Authenticated() {
		return nil
	}

	var fetched []Line
	err := s.queue.do(ctx, syncOp{
		name: "fetch",
		ctx:  ctx,
		run: func(ctx context.Context) (err error) {
			fetched, err = s.remote.Fetch(ctx)
			return err
		},
	})
	if err != nil {
		// Already logged and reported by the queue.
		return nil
	}
	fetched = normalize(fetched)

	s.mu.Lock()
	defer s.mu.Unlock()

	var pushed []Key
	err = s.mutateLocked(ctx, func() {
		if s.policy == MergeReplace {
			s.lines = fetched
			return
		}
		merged := fetched
		for _, l := range s.lines {
			if l.ServerID != "" {
				continue
			}
			if i := indexOf(merged, l.Key()); i >= 0 {
				merged[i].Quantity = l.Quantity
			} else {
				merged = append(merged, l)
			}
			pushed = append(pushed, l.Key())
		}
		s.lines = merged
	})
	if err != nil {
		return err
	}
	for _, key := range pushed {
		s.enqueueLocked(ctx, "upsert", s.upsertOp(key))
	}

	s.lg.Debug("Merged remote cart",
		zap.Int("remote_lines", len(fetched)),
		zap.Int("lines", len(s.lines)),
	)
	return nil
}

// Flush waits until every remote call queued so far has finished.
func (s *Store) Flush(ctx context.Context) error {
	return s.queue.do(ctx, syncOp{
		name: "flush",
		ctx:  ctx,
		run:  func(context.Context) error { return nil },
	})
}

// Pending is the number of remote calls queued or in flight.
func (s *Store) Pending() int { return s.queue.size() }

// Close runs the queued remote calls and stops the sync worker.
func (s *Store) Close() {
	s.queue.close()
}

// detach turns every line into a guest line after sign-out.
func (s *Store) detach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detached = map[Key]string{}
	return s.mutateLocked(ctx, func() {
		for i := range s.lines {
			s.lines[i].ServerID = ""
		}
	})
}

// mutateLocked applies fn and persists the result. When persisting fails the
// previous lines are restored and the error is reported.
func (s *Store) mutateLocked(ctx context.Context, fn func()) error {
	prev := cloneLines(s.lines)
	fn()
	if err := s.local.Save(ctx, s.lines); err != nil {
		s.lines = prev
		s.lg.Error("Persist cart locally", zap.Error(err))
		s.notifier.Notify(ctx, notify.Notification{
			Level:   notify.Error,
			Message: "Could not save your cart on this device",
		})
		return errors.Wrap(err, "save local cart")
	}
	return nil
}

func (s *Store) enqueueLocked(ctx context.Context, name string, run func(ctx context.Context) error) {
	if s.remote == nil || s.session == nil || !s.session.Authenticated() {
		return
	}
	if !s.queue.push(syncOp{name: name, ctx: ctx, run: run}) {
		s.lg.Warn("Cart sync dropped, store closed", zap.String("op", name))
	}
}

// execute runs one queued op on the worker goroutine.
func (s *Store) execute(op syncOp) error {
	ctx := context.WithoutCancel(op.ctx)
	ctx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "cart.sync."+op.name)
	defer span.End()

	err := op.run(ctx)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		s.lg.Warn("Cart sync failed", zap.String("op", op.name), zap.Error(err))
		s.notifier.Notify(ctx, notify.Notification{
			Level:   notify.Error,
			Message: syncFailureMessage(op.name),
		})
	}
	if op.name != "flush" {
		s.syncOps.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op.name),
			attribute.String("outcome", outcome),
		))
	}
	return err
}

func syncFailureMessage(op string) string {
	switch op {
	case "fetch":
		return "Could not load your saved cart"
	case "upsert":
		return "Could not save item to your account cart"
	case "update":
		return "Could not update quantity in your account cart"
	case "delete":
		return "Could not remove item from your account cart"
	case "clear":
		return "Could not clear your account cart"
	default:
		return "Could not sync your cart"
	}
}

func (s *Store) upsertOp(key Key) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		line, ok := s.lookup(key)
		if !ok {
			return nil
		}
		return s.upsert(ctx, line)
	}
}

// quantityOp pushes the line's current quantity. Lines the backend has not
// seen yet are upserted instead.
func (s *Store) quantityOp(key Key) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		line, ok := s.lookup(key)
		if !ok {
			return nil
		}
		if line.ServerID == "" {
			return s.upsert(ctx, line)
		}
		if err := s.remote.UpdateQuantity(ctx, line.ServerID, line.Quantity); err != nil {
			return errors.Wrap(err, "update quantity")
		}
		return nil
	}
}

func (s *Store) deleteOp(key Key, serverID string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		id := serverID
		if id == "" {
			id = s.takeDetached(key)
		}
		if id == "" {
			return nil
		}
		if err := s.remote.Delete(ctx, id); err != nil {
			return errors.Wrap(err, "delete line")
		}
		return nil
	}
}

func (s *Store) clearOp() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := s.remote.Clear(ctx); err != nil {
			return errors.Wrap(err, "clear")
		}
		s.mu.Lock()
		s.detached = map[Key]string{}
		s.mu.Unlock()
		return nil
	}
}

func (s *Store) upsert(ctx context.Context, line Line) error {
	id, err := s.remote.Upsert(ctx, line)
	if err != nil {
		return errors.Wrap(err, "upsert line")
	}
	if id == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(line.Key())
	if i < 0 {
		s.detached[line.Key()] = id
		return nil
	}
	if s.lines[i].ServerID == id {
		return nil
	}
	s.lines[i].ServerID = id
	if err := s.local.Save(ctx, s.lines); err != nil {
		// The id is kept in memory and persisted with the next mutation.
		s.lg.Warn("Persist server id", zap.String("server_id", id), zap.Error(err))
	}
	return nil
}

func (s *Store) lookup(key Key) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(key); i >= 0 {
		return s.lines[i], true
	}
	return Line{}, false
}

func (s *Store) takeDetached(key Key) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.detached[key]
	delete(s.detached, key)
	return id
}

func (s *Store) indexLocked(key Key) int {
	return indexOf(s.lines, key)
}

func indexOf(lines []Line, key Key) int {
	for i, l := range lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// normalize clamps quantities and folds duplicate keys into the first
// occurrence, keeping the later values.
func normalize(lines []Line) []Line {
	if len(lines) == 0 {
		return nil
	}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		l.Quantity = ClampQuantity(l.Quantity)
		if i := indexOf(out, l.Key()); i >= 0 {
			out[i] = l
			continue
		}
		out = append(out, l)
	}
	return out
}
