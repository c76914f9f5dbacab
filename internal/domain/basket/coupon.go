package basket

import "github.com/shopspring/decimal"

// DefaultCouponTax is the tax rate assumed for coupons that were issued
// without one. It is written back onto the coupon the first time a summary
// is computed.
const DefaultCouponTax int64 = 19

// Coupon is a fixed-amount discount. Code is unique among the active
// coupons; uniqueness is enforced by the ledger. Tax is the rate used to
// back-calculate the VAT implicit in the discount, nil until set or
// backfilled.
type Coupon struct {
	Code        string          `json:"code"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	SortOrder   int             `json:"sortOrder,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Tax         *int64          `json:"tax,omitempty"`
}
