package basket

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Summary is the derived financial snapshot of the basket. It is computed
// on demand and never cached or persisted. Each money field carries a
// numeric and a fixed-2-decimal string form.
type Summary struct {
	Quantity     int64           `json:"quantity"`
	Sum          decimal.Decimal `json:"sum"`
	SumStr       string          `json:"sumStr"`
	Vat          decimal.Decimal `json:"vat"`
	VatStr       string          `json:"vatStr"`
	Shipping     decimal.Decimal `json:"shipping"`
	ShippingStr  string          `json:"shippingStr"`
	Surcharge    decimal.Decimal `json:"surcharge"`
	SurchargeStr string          `json:"surchargeStr"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	TotalStr     string          `json:"totalStr"`
	ShippingTax  decimal.Decimal `json:"shippingTax"`
}

// ShippingMethod overrides the configured shipping cost. When a summary is
// computed with a shipping method, its price wins unconditionally, free
// shipping threshold included; validating it is the caller's business.
type ShippingMethod struct {
	Price decimal.Decimal `json:"price"`
}

// PaymentMethod describes payment surcharges. A non-zero SurchargePercentage
// replaces the flat Surcharge with a percentage of the item total.
type PaymentMethod struct {
	Surcharge           decimal.Decimal `json:"surcharge"`
	SurchargePercentage decimal.Decimal `json:"surcharge_percentage"`
}

// SummaryOptions carries the optional per-call inputs to GetSummary.
type SummaryOptions struct {
	ShippingMethod *ShippingMethod `json:"shippingMethod,omitempty"`
	PaymentMethod  *PaymentMethod  `json:"paymentMethod,omitempty"`
}

// vatShare extracts the VAT contained in a tax-inclusive price, rounded to
// cents. The rounding happens before any multiplication by quantity; that
// order is part of the contract.
func vatShare(price decimal.Decimal, tax decimal.Decimal) decimal.Decimal {
	return price.Mul(tax).Div(tax.Add(hundred)).Round(2)
}

// GetSummary derives the financial summary from the current items, active
// coupons and the shipping configuration captured at construction time.
//
// Side effect: a coupon without a tax rate is backfilled to
// DefaultCouponTax the first time it passes through a summary; once set the
// value is never touched again.
func (l *Ledger) GetSummary(opts *SummaryOptions) Summary {
	var (
		quantity int64
		sum      decimal.Decimal
		vat      decimal.Decimal
	)

	for _, item := range l.items {
		price := item.Price()
		tax := decimal.NewFromInt(item.Product.Tax)
		qty := decimal.NewFromInt(item.Quantity)

		quantity += item.Quantity
		sum = sum.Add(price.Mul(qty))
		vat = vat.Add(vatShare(price, tax).Mul(qty))
	}

	shipping := l.shippingCost
	if l.freeShippingFrom != nil && sum.GreaterThanOrEqual(*l.freeShippingFrom) {
		shipping = decimal.Zero
	}
	// An explicit shipping method always wins; whether the basket actually
	// qualifies for it is checked elsewhere.
	if opts != nil && opts.ShippingMethod != nil {
		shipping = opts.ShippingMethod.Price
	}

	discount := decimal.Zero
	total := sum.Add(discount)

	surcharge := decimal.Zero
	if opts != nil && opts.PaymentMethod != nil {
		surcharge = opts.PaymentMethod.Surcharge
		if !opts.PaymentMethod.SurchargePercentage.IsZero() {
			surcharge = total.Mul(opts.PaymentMethod.SurchargePercentage).Div(hundred)
		}
	}

	total = total.Add(shipping).Add(surcharge)

	for _, coupon := range l.coupons {
		total = total.Sub(coupon.Amount)
		if coupon.Tax == nil {
			tax := DefaultCouponTax
			coupon.Tax = &tax
		}
		vat = vat.Sub(vatShare(coupon.Amount, decimal.NewFromInt(*coupon.Tax)))
	}

	vat = vat.Add(vatShare(shipping, l.shippingTax))

	return Summary{
		Quantity:     quantity,
		Sum:          sum,
		SumStr:       sum.StringFixed(2),
		Vat:          vat,
		VatStr:       vat.StringFixed(2),
		Shipping:     shipping,
		ShippingStr:  shipping.StringFixed(2),
		Surcharge:    surcharge,
		SurchargeStr: surcharge.StringFixed(2),
		Discount:     discount,
		Total:        total,
		TotalStr:     total.StringFixed(2),
		ShippingTax:  l.shippingTax,
	}
}
