package basket

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfStock           = errors.New("basket: product out of stock")
	ErrExceedsStock         = errors.New("basket: quantity exceeds available stock")
	ErrItemNotFound         = errors.New("basket: item not found")
	ErrInsufficientQuantity = errors.New("basket: remove quantity is higher than existing quantity")
	ErrInvalidQuantity      = errors.New("basket: quantity must be greater than zero")
)

// NotFoundError reports a remove/decrease against a (product, variant) pair
// with no matching line item. It unwraps to ErrItemNotFound.
type NotFoundError struct {
	ProductID string
	Variant   Variant
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("basket: product id: %s , variant: %s does not exist in the basket",
		e.ProductID, describeVariant(e.Variant))
}

func (e *NotFoundError) Unwrap() error { return ErrItemNotFound }

// describeVariant renders a variant for error messages. An absent variant is
// rendered as "undefined"; callers match on that shape.
func describeVariant(v Variant) string {
	switch vv := v.(type) {
	case nil:
		return "undefined"
	case VariantRef:
		return string(vv)
	case *VariantRecord:
		if vv.OptionID != "" {
			return vv.VariantID + "/" + vv.OptionID
		}
		return vv.VariantID
	default:
		return "undefined"
	}
}
