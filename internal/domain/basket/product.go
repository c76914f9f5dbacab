package basket

import "github.com/shopspring/decimal"

// Product is a catalog record referenced by basket line items. The ledger
// never owns products; it only reads pricing fields and adjusts the stock
// counter when items enter or leave the basket.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name,omitempty"`
	Price decimal.Decimal `json:"price"`
	Tax   int64           `json:"tax"`
	// Qty is the remaining stock. A nil Qty means the product has no stock
	// tracking at all; it must never be deducted from or restored to.
	Qty *int64 `json:"qty"`
}

// HasInfiniteStock reports whether stock bookkeeping is disabled for the
// product.
func (p *Product) HasInfiniteStock() bool {
	return p.Qty == nil
}

// IsOutOfStock reports whether the product has a tracked stock counter that
// is exhausted.
func (p *Product) IsOutOfStock() bool {
	return p.Qty != nil && *p.Qty <= 0
}

// Int64Ptr is a convenience for building products and variants with tracked
// stock counts.
func Int64Ptr(v int64) *int64 { return &v }
