package basket

import "github.com/shopspring/decimal"

// Storage keys. Both collections live under a shared prefix so multiple
// stores can host unrelated namespaces side by side.
const (
	storePrefix     = "basket_"
	StoreItemsKey   = storePrefix + "items"
	StoreCouponsKey = storePrefix + "coupons"
)

// Config option names consumed by the ledger.
const (
	OptShippingCost     = "shippingCost"
	OptShippingTax      = "shippingTax"
	OptFreeShippingFrom = "freeShippingFrom"
)

// Storage is the persistence collaborator. Values are opaque,
// serialization-safe byte payloads. Calls are synchronous and in-process.
type Storage interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Config is the configuration collaborator. The second return is false when
// the option is not configured.
type Config interface {
	Get(name string) (decimal.Decimal, bool)
}
