package checkout

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/wello-store/internal/domain/cart"
	"github.com/xenking/wello-store/internal/domain/coupon"
	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/notify"
)

const maxOrderIDAttempts = 16

// Coupons validates coupon codes for a user.
type Coupons interface {
	Apply(ctx context.Context, code string, user coupon.Redeemer) (coupon.Rule, error)
}

// Orders records committed orders.
type Orders interface {
	CommitOrder(ctx context.Context, email string, order ledger.Order, couponCode string) (ledger.User, error)
}

// Notifier delivers committed orders to external sinks without blocking.
type Notifier interface {
	Dispatch(ctx context.Context, e notify.OrderPlaced)
}

// Receipt is the outcome of a successful confirmation.
type Receipt struct {
	Machine    Machine
	User       ledger.User
	Order      ledger.Order
	HandoffURL string
}

// Service runs checkout transitions that need collaborators: coupon
// validation, order id generation and order commit.
type Service struct {
	coupons  Coupons
	orders   Orders
	notifier Notifier
	handoff  notify.Handoff

	now        func() time.Time
	newOrderID func() string

	tracer     trace.Tracer
	committed  metric.Int64Counter
	rejections metric.Int64Counter
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	handoff    notify.Handoff
	now        func() time.Time
	newOrderID func() string
	meter      metric.MeterProvider
	tracer     trace.TracerProvider
}

// WithHandoff sets the chat handoff used to build links after commit.
func WithHandoff(h notify.Handoff) Option {
	return func(o *serviceOptions) { o.handoff = h }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// WithOrderIDs overrides the order id generator.
func WithOrderIDs(gen func() string) Option {
	return func(o *serviceOptions) { o.newOrderID = gen }
}

// WithMeterProvider sets the meter provider for checkout counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *serviceOptions) { o.meter = mp }
}

// WithTracerProvider sets the tracer provider for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *serviceOptions) { o.tracer = tp }
}

// NewOrderID returns "#ORD-" followed by six random digits.
func NewOrderID() string {
	return fmt.Sprintf("#ORD-%06d", rand.IntN(1_000_000))
}

// NewService creates a checkout Service.
func NewService(coupons Coupons, orders Orders, notifier Notifier, opts ...Option) (*Service, error) {
	o := serviceOptions{
		now:        time.Now,
		newOrderID: NewOrderID,
		meter:      otel.GetMeterProvider(),
		tracer:     otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meter.Meter("wello/checkout")
	committed, err := meter.Int64Counter("wello.checkout.orders",
		metric.WithDescription("Orders committed to the ledger"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	rejections, err := meter.Int64Counter("wello.checkout.coupon_rejections",
		metric.WithDescription("Coupon codes rejected at apply or commit time"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "coupon rejections counter")
	}

	return &Service{
		coupons:    coupons,
		orders:     orders,
		notifier:   notifier,
		handoff:    o.handoff,
		now:        o.now,
		newOrderID: o.newOrderID,
		tracer:     o.tracer.Tracer("wello/checkout"),
		committed:  committed,
		rejections: rejections,
	}, nil
}

// Begin starts a checkout over lines. A machine left in OrderCommitted by a
// previous checkout is replaced by a fresh one first.
func (s *Service) Begin(_ context.Context, m Machine, lines []cart.Line) (Machine, error) {
	if m.State.Terminal() {
		m = New()
	}
	return Begin(m, lines)
}

// ApplyCoupon validates input for user and applies it. On rejection the
// machine is returned unchanged together with coupon.ErrUnknownCode or
// coupon.ErrAlreadyRedeemed.
func (s *Service) ApplyCoupon(ctx context.Context, user ledger.User, m Machine, input string) (Machine, error) {
	if m.State != StateCheckingOut {
		return m, &StateError{State: m.State, Op: "apply coupon"}
	}
	rule, err := s.coupons.Apply(ctx, input, user)
	if err != nil {
		s.countRejection(ctx, err)
		return m, err
	}
	return ApplyCoupon(m, input, rule)
}

// ProceedToPayment freezes the checkout under an order id that is unique in
// the user's history.
func (s *Service) ProceedToPayment(_ context.Context, user ledger.User, m Machine, address, phone string) (Machine, error) {
	if m.State != StateCheckingOut {
		return m, &StateError{State: m.State, Op: "proceed to payment"}
	}
	id, err := s.uniqueOrderID(user)
	if err != nil {
		return m, err
	}
	return ProceedToPayment(m, address, phone, id, s.now())
}

func (s *Service) uniqueOrderID(user ledger.User) (string, error) {
	for range maxOrderIDAttempts {
		if id := s.newOrderID(); !user.HasOrder(id) {
			return id, nil
		}
	}
	return "", errors.Errorf("no free order id after %d attempts", maxOrderIDAttempts)
}

// Confirm validates reference, commits the frozen order to the ledger and
// then notifies sinks. The machine reaches OrderCommitted only after the
// ledger write succeeds; on any error it is left in AwaitingPayment.
func (s *Service) Confirm(ctx context.Context, user ledger.User, m Machine, reference string) (_ Receipt, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Confirm")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	order, err := SubmitPayment(m, reference)
	if err != nil {
		return Receipt{}, err
	}
	span.SetAttributes(
		attribute.String("wello.order_id", order.ID),
		attribute.Int64("wello.order_total", order.Total),
	)

	updated, err := s.orders.CommitOrder(ctx, user.Email, order, order.CouponCode)
	if err != nil {
		if errors.Is(err, coupon.ErrAlreadyRedeemed) {
			s.countRejection(ctx, err)
			return Receipt{}, err
		}
		return Receipt{}, errors.Wrap(err, "commit order")
	}

	next, err := Committed(m, order)
	if err != nil {
		return Receipt{}, err
	}
	s.committed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("coupon", order.CouponCode != "")))

	event := notify.OrderPlaced{
		OrderID:    order.ID,
		UserName:   updated.Name,
		UserEmail:  updated.Email,
		Items:      order.Items,
		Amount:     order.Total,
		PaymentRef: order.PaymentRef,
		PlacedAt:   order.CreatedAt,
	}
	s.notifier.Dispatch(ctx, event)

	zctx.From(ctx).Info("Order committed",
		zap.String("order_id", order.ID),
		zap.Int64("total", order.Total),
		zap.String("coupon", order.CouponCode),
	)

	return Receipt{
		Machine:    next,
		User:       updated,
		Order:      order,
		HandoffURL: s.handoff.Link(event),
	}, nil
}

func (s *Service) countRejection(ctx context.Context, err error) {
	reason := "unknown_code"
	switch {
	case errors.Is(err, coupon.ErrAlreadyRedeemed):
		reason = "already_redeemed"
	case !errors.Is(err, coupon.ErrUnknownCode):
		return
	}
	s.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
