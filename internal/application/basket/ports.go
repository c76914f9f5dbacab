package basket

import (
	"context"
	"errors"

	domain "github.com/sofa/sofa-basket-service/internal/domain/basket"
)

// Errors a Catalog implementation reports.
var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrVariantNotFound = errors.New("catalog: variant not found")
)

// Catalog resolves the externally owned product and variant records a
// request refers to. The ledger itself never looks products up; it only
// works on the references handed to it.
type Catalog interface {
	Product(ctx context.Context, id string) (*domain.Product, error)
	// Variant resolves a variant selection. An empty variantID yields a nil
	// Variant and no error.
	Variant(ctx context.Context, productID, variantID, optionID string) (domain.Variant, error)
}
