package basket

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Persisted records lose all behavior; only plain data crosses the storage
// boundary. The decoders below rebuild behavior-bearing values from it. The
// variant field is dispatched on its JSON shape: null stays an absent
// variant (an explicit null must survive the round trip), a bare string
// becomes a VariantRef, an object becomes a *VariantRecord.

type persistedItem struct {
	Product  *Product        `json:"product"`
	Variant  json.RawMessage `json:"variant"`
	Quantity int64           `json:"quantity"`
}

var jsonNull = []byte("null")

func encodeItems(items []*LineItem) ([]byte, error) {
	records := make([]persistedItem, 0, len(items))
	for _, item := range items {
		variant, err := encodeVariant(item.Variant)
		if err != nil {
			return nil, fmt.Errorf("basket: encode variant: %w", err)
		}
		records = append(records, persistedItem{
			Product:  item.Product,
			Variant:  variant,
			Quantity: item.Quantity,
		})
	}
	return json.Marshal(records)
}

func decodeItems(data []byte) ([]*LineItem, error) {
	var records []persistedItem
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("basket: decode items: %w", err)
	}

	items := make([]*LineItem, 0, len(records))
	for _, record := range records {
		variant, err := decodeVariant(record.Variant)
		if err != nil {
			return nil, fmt.Errorf("basket: decode variant: %w", err)
		}
		items = append(items, &LineItem{
			Product:  record.Product,
			Variant:  variant,
			Quantity: record.Quantity,
		})
	}
	return items, nil
}

func encodeVariant(v Variant) (json.RawMessage, error) {
	switch vv := v.(type) {
	case nil:
		return jsonNull, nil
	case VariantRef:
		return json.Marshal(string(vv))
	case *VariantRecord:
		return json.Marshal(vv)
	default:
		return nil, fmt.Errorf("unknown variant shape %T", v)
	}
}

func decodeVariant(raw json.RawMessage) (Variant, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		var ref string
		if err := json.Unmarshal(raw, &ref); err != nil {
			return nil, err
		}
		return VariantRef(ref), nil
	case '{':
		var record VariantRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, err
		}
		return &record, nil
	default:
		return nil, fmt.Errorf("unknown variant shape %q", raw)
	}
}

func encodeCoupons(coupons []*Coupon) ([]byte, error) {
	if coupons == nil {
		coupons = []*Coupon{}
	}
	return json.Marshal(coupons)
}

func decodeCoupons(data []byte) ([]*Coupon, error) {
	var coupons []*Coupon
	if err := json.Unmarshal(data, &coupons); err != nil {
		return nil, fmt.Errorf("basket: decode coupons: %w", err)
	}
	return coupons, nil
}

// rehydrate loads both collections from storage. Missing keys mean an empty
// basket; undecodable payloads are surfaced, not discarded.
func (l *Ledger) rehydrate() error {
	if data, ok := l.storage.Get(StoreItemsKey); ok {
		items, err := decodeItems(data)
		if err != nil {
			return err
		}
		l.items = items
	}

	if data, ok := l.storage.Get(StoreCouponsKey); ok {
		coupons, err := decodeCoupons(data)
		if err != nil {
			return err
		}
		l.coupons = coupons
	}

	return nil
}

// persist writes both collections. Runs after every mutation, before the
// corresponding event is emitted.
func (l *Ledger) persist() error {
	items, err := encodeItems(l.items)
	if err != nil {
		return err
	}
	coupons, err := encodeCoupons(l.coupons)
	if err != nil {
		return err
	}

	l.storage.Set(StoreItemsKey, items)
	l.storage.Set(StoreCouponsKey, coupons)
	return nil
}
