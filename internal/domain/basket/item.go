package basket

import "github.com/shopspring/decimal"

// LineItem is one basket entry, keyed by (product identity, variant
// identity). A LineItem with quantity zero never exists inside the ledger;
// it is removed instead.
type LineItem struct {
	Product  *Product
	Variant  Variant
	Quantity int64
}

// Price resolves the unit price: the variant's price when the variant
// carries one, otherwise the product's price.
func (li *LineItem) Price() decimal.Decimal {
	if p := variantPrice(li.Variant); p != nil {
		return *p
	}
	return li.Product.Price
}

// Total is quantity times unit price.
func (li *LineItem) Total() decimal.Decimal {
	return li.Price().Mul(decimal.NewFromInt(li.Quantity))
}
