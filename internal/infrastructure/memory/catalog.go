package memory

import (
	"context"
	"sync"

	app "github.com/sofa/sofa-basket-service/internal/application/basket"
	domain "github.com/sofa/sofa-basket-service/internal/domain/basket"
)

// Catalog is an in-memory product/variant lookup. Products are handed out
// by reference on purpose: the ledger reconciles stock through the shared
// record, so every caller must see the same counter.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	variants map[string][]*domain.VariantRecord
}

func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string]*domain.Product),
		variants: make(map[string][]*domain.VariantRecord),
	}
}

// PutProduct registers or replaces a product.
func (c *Catalog) PutProduct(p *domain.Product) {
	if p == nil || p.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// PutVariant registers a variant record for a product.
func (c *Catalog) PutVariant(productID string, v *domain.VariantRecord) {
	if productID == "" || v == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variants[productID] = append(c.variants[productID], v)
}

func (c *Catalog) Product(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, app.ErrProductNotFound
	}
	return p, nil
}

// Variant resolves a variant selection for a product. An empty variantID
// means no variant was selected and yields a nil Variant.
func (c *Catalog) Variant(ctx context.Context, productID, variantID, optionID string) (domain.Variant, error) {
	_ = ctx

	if variantID == "" {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, v := range c.variants[productID] {
		if v.VariantID == variantID && v.OptionID == optionID {
			return v, nil
		}
	}
	return nil, app.ErrVariantNotFound
}
