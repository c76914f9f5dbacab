package basket

// Event names emitted by the ledger.
const (
	EventItemAdded      = "basket.item_added"
	EventItemRemoved    = "basket.item_removed"
	EventCouponAdded    = "basket.coupon_added"
	EventCouponRemoved  = "basket.coupon_removed"
	EventCleared        = "basket.cleared"
	EventCouponsCleared = "basket.coupons_cleared"
)

// ItemAddedEvent is emitted after an item was added (or merged into an
// existing line) and the new state was persisted.
type ItemAddedEvent struct {
	Item *LineItem
}

func (ItemAddedEvent) EventName() string { return EventItemAdded }

// ItemRemovedEvent is emitted after a remove. Item may already be detached
// from the ledger when its quantity reached zero.
type ItemRemovedEvent struct {
	Item *LineItem
}

func (ItemRemovedEvent) EventName() string { return EventItemRemoved }

// CouponAddedEvent is emitted after a new coupon code was accepted.
type CouponAddedEvent struct {
	Coupon *Coupon
}

func (CouponAddedEvent) EventName() string { return EventCouponAdded }

// CouponRemovedEvent is emitted after a remove-coupon call. Coupon is nil
// when no active coupon matched the code; that is not an error.
type CouponRemovedEvent struct {
	Coupon *Coupon
}

func (CouponRemovedEvent) EventName() string { return EventCouponRemoved }

// ClearedEvent is emitted after both collections were emptied.
type ClearedEvent struct{}

func (ClearedEvent) EventName() string { return EventCleared }

// CouponsClearedEvent is emitted after the coupon collection was emptied.
type CouponsClearedEvent struct{}

func (CouponsClearedEvent) EventName() string { return EventCouponsCleared }
