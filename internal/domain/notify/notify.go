// Package notify fans committed orders out to external best-effort sinks.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// OrderPlaced describes a committed order for external consumers.
type OrderPlaced struct {
	OrderID    string
	UserName   string
	UserEmail  string
	Items      string
	Amount     int64
	PaymentRef string
	PlacedAt   time.Time
}

// Sink delivers an event to one external destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, e OrderPlaced) error
}

// Dispatcher sends events to every sink concurrently. Failures are logged
// and dropped; callers never observe them.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	wg      sync.WaitGroup
	pending atomic.Int64
}

// NewDispatcher creates a Dispatcher that gives each sink at most timeout
// per event.
func NewDispatcher(timeout time.Duration, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, timeout: timeout}
}

// Dispatch starts delivery and returns immediately. Delivery outlives
// cancellation of ctx but still carries its logger.
func (d *Dispatcher) Dispatch(ctx context.Context, e OrderPlaced) {
	base := context.WithoutCancel(ctx)
	for _, s := range d.sinks {
		d.wg.Add(1)
		d.pending.Add(1)
		go d.send(base, s, e)
	}
}

func (d *Dispatcher) send(ctx context.Context, s Sink, e OrderPlaced) {
	defer d.wg.Done()
	defer d.pending.Add(-1)
	lg := zctx.From(ctx).With(zap.String("sink", s.Name()), zap.String("order_id", e.OrderID))
	defer func() {
		if r := recover(); r != nil {
			lg.Error("Sink panic", zap.Any("panic", r))
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := s.Send(ctx, e); err != nil {
		lg.Warn("Notification failed", zap.Error(err))
		return
	}
	lg.Debug("Notification sent")
}

// Pending returns the number of deliveries in flight.
func (d *Dispatcher) Pending() int {
	return int(d.pending.Load())
}

// Wait blocks until all in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// ConfirmationMessage is the customer-to-shop message used by the handoff link.
func ConfirmationMessage(e OrderPlaced) string {
	return fmt.Sprintf(
		"Hello WELLO Team, I have placed an order.\n\nOrder ID: %s\nAmount: ₹%d\nUTR/Ref No: %s\n\nPlease confirm my order.",
		e.OrderID, e.Amount, e.PaymentRef,
	)
}

// EmailMessage is the one-line summary sent to the shop mailbox.
func EmailMessage(e OrderPlaced) string {
	return fmt.Sprintf("New Order: %s. UTR: %s. Total: ₹%d", e.OrderID, e.PaymentRef, e.Amount)
}

// Handoff builds chat deep links addressed to the shop's phone number.
type Handoff struct {
	Phone string
}

// Link returns a wa.me link prefilled with the confirmation message, or an
// empty string when no phone is configured.
func (h Handoff) Link(e OrderPlaced) string {
	if h.Phone == "" {
		return ""
	}
	text := strings.ReplaceAll(url.QueryEscape(ConfirmationMessage(e)), "+", "%20")
	return "https://wa.me/" + h.Phone + "?text=" + text
}
