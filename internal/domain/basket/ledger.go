package basket

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sofa/sofa-basket-service/internal/domain/event"
)

// Listener observes ledger state transitions. Listeners run synchronously,
// in registration order, strictly after the mutation has been persisted.
type Listener func(l *Ledger, e event.Event)

type listenerEntry struct {
	id int
	fn Listener
}

// Ledger owns the ordered line-item collection and the set of active
// coupons. Every mutation updates the in-memory collections, re-persists
// both, then emits exactly one event. The ledger assumes a single logical
// writer; it performs no locking of its own.
type Ledger struct {
	storage  Storage
	identity IdentityFunc

	shippingCost     decimal.Decimal
	shippingTax      decimal.Decimal
	freeShippingFrom *decimal.Decimal

	items   []*LineItem
	coupons []*Coupon

	listeners  []listenerEntry
	listenerID int
}

// Option configures a Ledger at construction time.
type Option func(*Ledger)

// WithIdentityFunc swaps the line-item identity predicate.
func WithIdentityFunc(fn IdentityFunc) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.identity = fn
		}
	}
}

// New builds a ledger against the given storage and configuration
// collaborators, rehydrates any persisted state and immediately re-persists
// it to normalize schema drift. It fails when persisted state cannot be
// decoded.
func New(storage Storage, config Config, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		storage:  storage,
		identity: DefaultIdentity,
	}

	if cost, ok := config.Get(OptShippingCost); ok {
		l.shippingCost = cost
	}
	if tax, ok := config.Get(OptShippingTax); ok {
		l.shippingTax = tax
	}
	if from, ok := config.Get(OptFreeShippingFrom); ok {
		l.freeShippingFrom = &from
	}

	for _, opt := range opts {
		opt(l)
	}

	if err := l.rehydrate(); err != nil {
		return nil, err
	}
	if err := l.persist(); err != nil {
		return nil, err
	}

	return l, nil
}

// Subscribe registers a listener and returns its unsubscribe function.
func (l *Ledger) Subscribe(fn Listener) (unsubscribe func()) {
	l.listenerID++
	id := l.listenerID
	l.listeners = append(l.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		for i, entry := range l.listeners {
			if entry.id == id {
				l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
				return
			}
		}
	}
}

func (l *Ledger) emit(e event.Event) {
	for _, entry := range l.listeners {
		entry.fn(l, e)
	}
}

// AddItem puts quantity units of the product (with the given variant, which
// may be nil) into the basket. Matching lines are merged; stock is deducted
// from the variant counter when the variant tracks one, otherwise from the
// product counter unless the product has infinite stock. The mutation is
// all-or-nothing: every failure is raised before any state changes.
func (l *Ledger) AddItem(product *Product, quantity int64, variant Variant) (*LineItem, error) {
	if product == nil {
		return nil, fmt.Errorf("basket: product is required")
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if product.IsOutOfStock() {
		return nil, ErrOutOfStock
	}
	if !canHandleQuantity(product, quantity, variant) {
		return nil, ErrExceedsStock
	}

	item := l.Find(l.matchPredicate(product, variant))
	if item == nil {
		item = &LineItem{}
		l.items = append(l.items, item)
	}

	// Reassign the references on merge as well, so a stale product or
	// variant snapshot inside a rehydrated line is refreshed.
	item.Product = product
	item.Variant = variant
	item.Quantity += quantity

	applyStockDelta(product, variant, -quantity)

	if err := l.persist(); err != nil {
		return nil, err
	}
	l.emit(ItemAddedEvent{Item: item})

	return item, nil
}

// RemoveItem takes quantity units of the (product, variant) line out of the
// basket and restores the stock counter the add deducted from. A line whose
// quantity reaches zero is removed entirely.
func (l *Ledger) RemoveItem(product *Product, quantity int64, variant Variant) (*LineItem, error) {
	if product == nil {
		return nil, fmt.Errorf("basket: product is required")
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	item := l.Find(l.matchPredicate(product, variant))
	if item == nil {
		return nil, &NotFoundError{ProductID: product.ID, Variant: variant}
	}
	if item.Quantity < quantity {
		return nil, ErrInsufficientQuantity
	}

	item.Quantity -= quantity
	if item.Quantity == 0 {
		l.removeLine(item)
	}

	applyStockDelta(product, variant, quantity)

	if err := l.persist(); err != nil {
		return nil, err
	}
	l.emit(ItemRemovedEvent{Item: item})

	return item, nil
}

// Increase adds n more units of the line's own product/variant pair.
func (l *Ledger) Increase(item *LineItem, n int64) (*LineItem, error) {
	return l.AddItem(item.Product, n, item.Variant)
}

// IncreaseOne is Increase by one.
func (l *Ledger) IncreaseOne(item *LineItem) (*LineItem, error) {
	return l.Increase(item, 1)
}

// Decrease removes n units of the line's own product/variant pair.
func (l *Ledger) Decrease(item *LineItem, n int64) (*LineItem, error) {
	return l.RemoveItem(item.Product, n, item.Variant)
}

// DecreaseOne is Decrease by one.
func (l *Ledger) DecreaseOne(item *LineItem) (*LineItem, error) {
	return l.Decrease(item, 1)
}

// CanBeIncreasedBy reports whether the line could absorb amount more units
// under the same capacity rules AddItem applies. It never mutates.
func (l *Ledger) CanBeIncreasedBy(item *LineItem, amount int64) bool {
	return canHandleQuantity(item.Product, amount, item.Variant)
}

// AddCoupon activates a coupon. A coupon whose code is already active is
// silently ignored: no persistence write, no event.
func (l *Ledger) AddCoupon(coupon Coupon) error {
	for _, active := range l.coupons {
		if active.Code == coupon.Code {
			return nil
		}
	}

	added := &coupon
	l.coupons = append(l.coupons, added)

	if err := l.persist(); err != nil {
		return err
	}
	l.emit(CouponAddedEvent{Coupon: added})

	return nil
}

// RemoveCoupon deactivates the coupon with the given code. A code that does
// not match any active coupon is not an error; the emitted event simply
// carries a nil coupon.
func (l *Ledger) RemoveCoupon(code string) error {
	var removed *Coupon
	for i, active := range l.coupons {
		if active.Code == code {
			removed = active
			l.coupons = append(l.coupons[:i], l.coupons[i+1:]...)
			break
		}
	}

	if err := l.persist(); err != nil {
		return err
	}
	l.emit(CouponRemovedEvent{Coupon: removed})

	return nil
}

// Clear empties both collections. Returns the ledger for chaining.
func (l *Ledger) Clear() *Ledger {
	l.items = nil
	l.coupons = nil

	_ = l.persist()
	l.emit(ClearedEvent{})

	return l
}

// ClearCoupons empties the coupon collection only. Returns the ledger for
// chaining.
func (l *Ledger) ClearCoupons() *Ledger {
	l.coupons = nil

	_ = l.persist()
	l.emit(CouponsClearedEvent{})

	return l
}

// Find returns the first line item satisfying the predicate, or nil.
func (l *Ledger) Find(predicate func(*LineItem) bool) *LineItem {
	for _, item := range l.items {
		if predicate(item) {
			return item
		}
	}
	return nil
}

// Exists reports whether a line for the (product, variant) pair is in the
// basket, judged by the ledger's identity predicate.
func (l *Ledger) Exists(product *Product, variant Variant) bool {
	return l.Find(l.matchPredicate(product, variant)) != nil
}

// Items returns the line items in insertion order. The slice is a copy, but
// the elements alias the ledger's lines: products and variants are shared
// references by contract.
func (l *Ledger) Items() []*LineItem {
	items := make([]*LineItem, len(l.items))
	copy(items, l.items)
	return items
}

// ActiveCoupons returns the active coupons. The slice is a copy; the
// elements are shared.
func (l *Ledger) ActiveCoupons() []*Coupon {
	coupons := make([]*Coupon, len(l.coupons))
	copy(coupons, l.coupons)
	return coupons
}

// IsEmpty reports whether the basket holds no line items.
func (l *Ledger) IsEmpty() bool {
	return len(l.items) == 0
}

func (l *Ledger) matchPredicate(product *Product, variant Variant) func(*LineItem) bool {
	return func(item *LineItem) bool {
		return l.identity(product, variant, item.Product, item.Variant)
	}
}

func (l *Ledger) removeLine(item *LineItem) {
	for i, candidate := range l.items {
		if candidate == item {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return
		}
	}
}

// canHandleQuantity is the stock-capacity check shared by AddItem and
// CanBeIncreasedBy. A variant that tracks its own stock is authoritative;
// otherwise the product's rules apply.
func canHandleQuantity(product *Product, quantity int64, variant Variant) bool {
	if stock := variantStock(variant); stock != nil {
		return *stock-quantity >= 0
	}
	return product.HasInfiniteStock() || *product.Qty-quantity >= 0
}

// applyStockDelta adjusts the stock counter the capacity check consulted:
// the variant counter when the variant tracks one, the product counter
// otherwise, and nothing at all for infinite-stock products. AddItem passes
// a negative delta, RemoveItem the positive mirror, so stock is conserved
// over any add/remove sequence that nets to zero.
func applyStockDelta(product *Product, variant Variant, delta int64) {
	if stock := variantStock(variant); stock != nil {
		*stock += delta
		return
	}
	if product.HasInfiniteStock() {
		return
	}
	*product.Qty += delta
}
