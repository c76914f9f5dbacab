package basket

import "github.com/shopspring/decimal"

// Variant is the optional product sub-selection on a line item. It is a
// closed sum: a nil Variant means "no variant", a VariantRef is a bare
// identifier with no stock or price of its own, and a *VariantRecord carries
// the full variant shape. All stock, price and identity resolution happens
// through explicit type switches so every shape is handled deliberately.
type Variant interface {
	variantKind()
}

// VariantRef is a variant known only by its identifier. It participates in
// line-item identity but never overrides stock or price.
type VariantRef string

func (VariantRef) variantKind() {}

// VariantRecord is a fully described variant. Stock and Price are optional;
// when Stock is non-nil the variant tracks its own stock counter and the
// product's counter is left alone.
type VariantRecord struct {
	VariantID string           `json:"variantID"`
	OptionID  string           `json:"optionID,omitempty"`
	Stock     *int64           `json:"stock,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

func (*VariantRecord) variantKind() {}

// variantIdentity resolves the (variant id, option id) pair used by the
// default identity predicate.
func variantIdentity(v Variant) (variantID, optionID string) {
	switch vv := v.(type) {
	case nil:
		return "", ""
	case VariantRef:
		return string(vv), ""
	case *VariantRecord:
		return vv.VariantID, vv.OptionID
	default:
		return "", ""
	}
}

// variantStock returns the variant's own stock counter, or nil when the
// variant does not track stock and the product's rules apply.
func variantStock(v Variant) *int64 {
	if rec, ok := v.(*VariantRecord); ok {
		return rec.Stock
	}
	return nil
}

// variantPrice returns the variant's price override, or nil when the product
// price applies.
func variantPrice(v Variant) *decimal.Decimal {
	if rec, ok := v.(*VariantRecord); ok {
		return rec.Price
	}
	return nil
}

// IdentityFunc decides whether two (product, variant) pairs address the same
// basket line. It must be pure.
type IdentityFunc func(productA *Product, variantA Variant, productB *Product, variantB Variant) bool

// DefaultIdentity matches when the product IDs, variant IDs and option IDs
// are all equal. Absent variants on both sides count as equal.
func DefaultIdentity(productA *Product, variantA Variant, productB *Product, variantB Variant) bool {
	aVariantID, aOptionID := variantIdentity(variantA)
	bVariantID, bOptionID := variantIdentity(variantB)

	return productA.ID == productB.ID &&
		aVariantID == bVariantID &&
		aOptionID == bOptionID
}
