// Package notify carries transient, dismissable messages from the cart and
// checkout flows to whatever renders them.
package notify

import (
	"context"
	"sync"
	"time"
)

// Level of a notification.
type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notification is a single user-visible message.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Nop discards notifications.
var Nop Notifier = Func(func(context.Context, Notification) {})

// Inbox buffers the most recent notifications until they are drained.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
	limit int
	now   func() time.Time
}

var _ Notifier = (*Inbox)(nil)

// NewInbox keeps at most limit notifications, dropping the oldest first.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 32
	}
	return &Inbox{limit: limit, now: time.Now}
}

// Notify appends n, stamping it when At is zero.
func (b *Inbox) Notify(_ context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = b.now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, n)
	if over := len(b.items) - b.limit; over > 0 {
		b.items = append(b.items[:0:0], b.items[over:]...)
	}
}

// Drain returns buffered notifications oldest first and empties the inbox.
func (b *Inbox) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.items
	b.items = nil
	return out
}

// Len reports how many notifications are waiting.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
