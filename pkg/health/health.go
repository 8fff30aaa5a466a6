// Package health serves liveness and readiness probes for the storefront.
//
// Checks are polled in the background; probe handlers only report the last
// known state. A check flips to unhealthy after FailureThreshold consecutive
// failures and back after SuccessThreshold consecutive successes.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Probe thresholds.
const (
	FailureThreshold = 3
	SuccessThreshold = 1
)

// Func reports nil when the checked dependency is usable.
type Func func(ctx context.Context) error

// Kind of probe a check contributes to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

func (k Kind) String() string {
	if k == Liveness {
		return "liveness"
	}
	return "readiness"
}

type check struct {
	name    string
	kind    Kind
	timeout time.Duration
	fn      Func

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Touched only by the polling goroutine.
	fails, oks int
}

// poll runs the check once and reports whether its health changed.
func (c *check) poll(ctx context.Context) (changed bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err = c.fn(ctx)
	was := c.healthy.Load()
	if err != nil {
		msg := err.Error()
		c.lastErr.Store(&msg)
		c.oks = 0
		c.fails++
		if c.fails >= FailureThreshold {
			c.healthy.Store(false)
		}
	} else {
		c.lastErr.Store(nil)
		c.fails = 0
		c.oks++
		if c.oks >= SuccessThreshold {
			c.healthy.Store(true)
		}
	}
	return was != c.healthy.Load(), err
}

func (c *check) failure() (string, bool) {
	if c.healthy.Load() {
		return "", false
	}
	if msg := c.lastErr.Load(); msg != nil {
		return *msg, true
	}
	return "check is unhealthy", true
}

// Health tracks registered checks and the manual readiness switch.
type Health struct {
	ready    atomic.Bool
	interval time.Duration
	lg       *zap.Logger

	mu     sync.RWMutex
	checks []*check
}

// Option configures Health.
type Option func(*Health)

// WithInterval sets how often checks are polled.
func WithInterval(d time.Duration) Option {
	return func(h *Health) { h.interval = d }
}

// WithLogger logs health transitions.
func WithLogger(lg *zap.Logger) Option {
	return func(h *Health) { h.lg = lg }
}

// New returns Health in the not-ready state.
func New(opts ...Option) *Health {
	h := &Health{interval: 10 * time.Second, lg: zap.NewNop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Add registers a check. Checks start healthy. Add must be called before Run.
func (h *Health) Add(kind Kind, name string, timeout time.Duration, fn Func) {
	c := &check{name: name, kind: kind, timeout: timeout, fn: fn}
	c.healthy.Store(true)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, c)
}

// Run polls every check until ctx is done.
func (h *Health) Run(ctx context.Context) error {
	h.mu.RLock()
	checks := append([]*check(nil), h.checks...)
	h.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			h.loop(ctx, c)
			return nil
		})
	}
	return g.Wait()
}

func (h *Health) loop(ctx context.Context, c *check) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if changed, err := c.poll(ctx); changed {
			lg := h.lg.With(zap.String("check", c.name), zap.Stringer("kind", c.kind))
			if err != nil {
				lg.Warn("Health check failing", zap.Error(err))
			} else {
				lg.Info("Health check recovered")
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SetReady flips the manual readiness switch.
func (h *Health) SetReady(ready bool) { h.ready.Store(ready) }

// Ready reports whether the switch is on and every readiness check passes.
func (h *Health) Ready() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(kind Kind) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := map[string]string{}
	for _, c := range h.checks {
		if c.kind != kind {
			continue
		}
		if msg, failed := c.failure(); failed {
			out[c.name] = msg
		}
	}
	return out
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

// writeStatus writes {"status":"ok"} with 200, or {"status":"unhealthy",
// "checks":{...}} with 503.
func writeStatus(w http.ResponseWriter, failures map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failures) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")

		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		sort.Strings(names)

		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failures[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
