package basket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	domain "github.com/sofa/sofa-basket-service/internal/domain/basket"
	"github.com/sofa/sofa-basket-service/internal/observability"
	"github.com/sofa/sofa-basket-service/internal/observability/logctx"
)

const (
	serviceName = "basket-service"
	spanPrefix  = "UC."

	useCaseAddItem      = "basket.add_item"
	useCaseRemoveItem   = "basket.remove_item"
	useCaseApplyCoupon  = "basket.apply_coupon"
	useCaseRemoveCoupon = "basket.remove_coupon"
	useCaseClear        = "basket.clear"
	useCaseClearCoupons = "basket.clear_coupons"
	useCaseGetItems     = "basket.get_items"
	useCaseGetSummary   = "basket.get_summary"
)

var ErrValidation = errors.New("basket: validation")

// Service exposes the basket use cases. It serializes all ledger access
// behind one mutex: the ledger itself assumes a single logical writer, and
// the HTTP surface is that writer.
type Service struct {
	mu      sync.Mutex
	ledger  *domain.Ledger
	catalog Catalog

	tel observability.Observability
	log observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

// NewService wires the dependencies required to execute the use cases.
func NewService(ledger *domain.Ledger, catalog Catalog, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		ledger:       ledger,
		catalog:      catalog,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", serviceName)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// track opens the use-case span and returns a completion func that records
// RED metrics and the final structured log line.
func (s *Service) track(ctx context.Context, useCase string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+useCase, attrs...)
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCase))
	start := time.Now()

	return ctx, func(err error) {
		lat := time.Since(start).Seconds()
		outcome := "success"

		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()

		s.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat,
			observability.L("use_case", useCase),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}
}

type ItemInput struct {
	ProductID string
	Quantity  int64
	VariantID string
	OptionID  string
}

// AddItem resolves the product/variant selection and puts it into the
// basket.
func (s *Service) AddItem(ctx context.Context, input ItemInput) (_ *domain.LineItem, err error) {
	ctx, done := s.track(ctx, useCaseAddItem,
		attribute.String("basket.product_id", input.ProductID),
		attribute.Int64("basket.quantity", input.Quantity),
	)
	defer func() { done(err) }()

	product, variant, err := s.resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.AddItem(product, input.Quantity, variant)
}

// RemoveItem takes the selection back out of the basket.
func (s *Service) RemoveItem(ctx context.Context, input ItemInput) (_ *domain.LineItem, err error) {
	ctx, done := s.track(ctx, useCaseRemoveItem,
		attribute.String("basket.product_id", input.ProductID),
		attribute.Int64("basket.quantity", input.Quantity),
	)
	defer func() { done(err) }()

	product, variant, err := s.resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.RemoveItem(product, input.Quantity, variant)
}

func (s *Service) resolve(ctx context.Context, input ItemInput) (*domain.Product, domain.Variant, error) {
	if input.ProductID == "" {
		return nil, nil, newValidation("product id is required")
	}
	if input.Quantity <= 0 {
		return nil, nil, newValidation("quantity must be greater than zero")
	}

	product, err := s.catalog.Product(ctx, input.ProductID)
	if err != nil {
		return nil, nil, err
	}
	variant, err := s.catalog.Variant(ctx, input.ProductID, input.VariantID, input.OptionID)
	if err != nil {
		return nil, nil, err
	}
	return product, variant, nil
}

// ApplyCoupon activates a coupon; duplicates are silently ignored by the
// ledger.
func (s *Service) ApplyCoupon(ctx context.Context, coupon domain.Coupon) (err error) {
	_, done := s.track(ctx, useCaseApplyCoupon,
		attribute.String("basket.coupon_code", coupon.Code),
	)
	defer func() { done(err) }()

	if coupon.Code == "" {
		return newValidation("coupon code is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.AddCoupon(coupon)
}

// RemoveCoupon deactivates the coupon with the given code; an unknown code
// is not an error.
func (s *Service) RemoveCoupon(ctx context.Context, code string) (err error) {
	_, done := s.track(ctx, useCaseRemoveCoupon,
		attribute.String("basket.coupon_code", code),
	)
	defer func() { done(err) }()

	if code == "" {
		return newValidation("coupon code is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.RemoveCoupon(code)
}

// Clear empties the basket, coupons included.
func (s *Service) Clear(ctx context.Context) (err error) {
	_, done := s.track(ctx, useCaseClear)
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Clear()
	return nil
}

// ClearCoupons empties only the active coupons.
func (s *Service) ClearCoupons(ctx context.Context) (err error) {
	_, done := s.track(ctx, useCaseClearCoupons)
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.ClearCoupons()
	return nil
}

// Snapshot is the read model of the basket contents.
type Snapshot struct {
	Items   []*domain.LineItem
	Coupons []*domain.Coupon
	IsEmpty bool
}

// Items returns the current basket contents.
func (s *Service) Items(ctx context.Context) (_ Snapshot, err error) {
	_, done := s.track(ctx, useCaseGetItems)
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Items:   s.ledger.Items(),
		Coupons: s.ledger.ActiveCoupons(),
		IsEmpty: s.ledger.IsEmpty(),
	}, nil
}

// Summary derives the financial summary with the given options.
func (s *Service) Summary(ctx context.Context, opts *domain.SummaryOptions) (_ domain.Summary, err error) {
	_, done := s.track(ctx, useCaseGetSummary)
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.GetSummary(opts), nil
}

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
