package activity

import (
	"context"
	"sync"
	"time"

	domain "github.com/sofa/sofa-basket-service/internal/domain/basket"
	domevent "github.com/sofa/sofa-basket-service/internal/domain/event"
	"github.com/sofa/sofa-basket-service/internal/infrastructure/id"
	"github.com/sofa/sofa-basket-service/internal/observability"
	"github.com/sofa/sofa-basket-service/internal/observability/logctx"
)

const componentActivity = "basket_activity"

// Entry is one recorded basket event.
type Entry struct {
	EventID    string    `json:"event_id"`
	Event      string    `json:"event"`
	ProductID  string    `json:"product_id,omitempty"`
	VariantID  string    `json:"variant_id,omitempty"`
	Quantity   int64     `json:"quantity,omitempty"`
	CouponCode string    `json:"coupon_code,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Recorder consumes basket events off the bus and keeps a bounded,
// newest-last journal of them. It is the only consumer that remembers
// events; the ledger itself never does.
type Recorder struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int

	ids     id.Generator
	log     observability.Logger
	counter observability.Counter // basket_events_total{event}
}

func NewRecorder(limit int, ids id.Generator, tel observability.Observability) *Recorder {
	if tel == nil {
		tel = observability.Nop()
	}
	if limit <= 0 {
		limit = 100
	}
	return &Recorder{
		limit:   limit,
		ids:     ids,
		log:     tel.Logger().With(observability.F("component", componentActivity)),
		counter: tel.Metrics().Counter(observability.MBasketEvents),
	}
}

// Register subscribes the recorder to every basket event name.
func (r *Recorder) Register(sub domevent.Subscriber) {
	for _, name := range []string{
		domain.EventItemAdded,
		domain.EventItemRemoved,
		domain.EventCouponAdded,
		domain.EventCouponRemoved,
		domain.EventCleared,
		domain.EventCouponsCleared,
	} {
		sub.Subscribe(name, r.handle)
	}
}

func (r *Recorder) handle(ctx context.Context, e domevent.Event) error {
	entry := Entry{
		EventID:    r.ids.NewID(),
		Event:      e.EventName(),
		OccurredAt: time.Now().UTC(),
	}

	switch evt := e.(type) {
	case domain.ItemAddedEvent:
		entry.ProductID = evt.Item.Product.ID
		entry.VariantID = variantID(evt.Item.Variant)
		entry.Quantity = evt.Item.Quantity
	case domain.ItemRemovedEvent:
		entry.ProductID = evt.Item.Product.ID
		entry.VariantID = variantID(evt.Item.Variant)
		entry.Quantity = evt.Item.Quantity
	case domain.CouponAddedEvent:
		entry.CouponCode = evt.Coupon.Code
	case domain.CouponRemovedEvent:
		if evt.Coupon != nil {
			entry.CouponCode = evt.Coupon.Code
		}
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	if len(r.entries) > r.limit {
		r.entries = r.entries[len(r.entries)-r.limit:]
	}
	r.mu.Unlock()

	r.counter.Add(1, observability.L("event", entry.Event))
	logctx.FromOr(ctx, r.log).Info("basket_event_recorded",
		observability.F("event_id", entry.EventID),
		observability.F("event", entry.Event),
	)

	return nil
}

// Recent returns the recorded entries, oldest first.
func (r *Recorder) Recent() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

func variantID(v domain.Variant) string {
	switch vv := v.(type) {
	case domain.VariantRef:
		return string(vv)
	case *domain.VariantRecord:
		return vv.VariantID
	default:
		return ""
	}
}
