package basket

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sofa/sofa-basket-service/internal/domain/event"
)

type stubStorage struct {
	values map[string][]byte
	sets   int
}

func newStubStorage() *stubStorage {
	return &stubStorage{values: make(map[string][]byte)}
}

func (s *stubStorage) Get(key string) ([]byte, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *stubStorage) Set(key string, value []byte) {
	s.values[key] = append([]byte(nil), value...)
	s.sets++
}

type stubConfig map[string]decimal.Decimal

func (c stubConfig) Get(name string) (decimal.Decimal, bool) {
	v, ok := c[name]
	return v, ok
}

func newTestLedger(t *testing.T, cfg stubConfig) (*Ledger, *stubStorage) {
	t.Helper()
	storage := newStubStorage()
	ledger, err := New(storage, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ledger, storage
}

func testProduct(id string, price int64, tax int64, qty int64) *Product {
	return &Product{
		ID:    id,
		Price: decimal.NewFromInt(price),
		Tax:   tax,
		Qty:   Int64Ptr(qty),
	}
}

func TestAddItem_CreatesLine(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 5)

	item, err := ledger.AddItem(product, 2, nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if item.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", item.Quantity)
	}
	if got := len(ledger.Items()); got != 1 {
		t.Errorf("expected 1 item, got %d", got)
	}
	if *product.Qty != 3 {
		t.Errorf("expected product qty 3 after deduction, got %d", *product.Qty)
	}
}

func TestAddItem_MergesMatchingLines(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 10)

	if _, err := ledger.AddItem(product, 1, nil); err != nil {
		t.Fatalf("first add: %v", err)
	}
	item, err := ledger.AddItem(product, 2, nil)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if got := len(ledger.Items()); got != 1 {
		t.Errorf("expected merged single line, got %d", got)
	}
	if item.Quantity != 3 {
		t.Errorf("expected merged quantity 3, got %d", item.Quantity)
	}
}

func TestAddItem_DifferentVariantIDsDoNotMerge(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 10)
	variant1 := &VariantRecord{VariantID: "123"}
	variant2 := &VariantRecord{VariantID: "46"}

	if _, err := ledger.AddItem(product, 1, variant1); err != nil {
		t.Fatalf("add variant1: %v", err)
	}
	if _, err := ledger.AddItem(product, 1, variant2); err != nil {
		t.Fatalf("add variant2: %v", err)
	}

	if got := len(ledger.Items()); got != 2 {
		t.Errorf("expected 2 lines for different variants, got %d", got)
	}
	if !ledger.Exists(product, variant1) || !ledger.Exists(product, variant2) {
		t.Error("expected both variant lines to exist")
	}
}

func TestAddItem_EqualVariantIdentityMerges(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 10)
	variant1 := &VariantRecord{VariantID: "1", OptionID: "a"}
	variant2 := &VariantRecord{VariantID: "1", OptionID: "a"}

	if _, err := ledger.AddItem(product, 1, variant1); err != nil {
		t.Fatalf("add variant1: %v", err)
	}
	item, err := ledger.AddItem(product, 1, variant2)
	if err != nil {
		t.Fatalf("add variant2: %v", err)
	}

	if got := len(ledger.Items()); got != 1 {
		t.Errorf("expected merged line for identical variant identity, got %d", got)
	}
	if item.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", item.Quantity)
	}
	// the merge refreshes the stored references
	if item.Variant != Variant(variant2) {
		t.Error("expected the latest variant reference on the merged line")
	}
}

func TestAddItem_OutOfStock(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 0)

	if _, err := ledger.AddItem(product, 1, nil); !errors.Is(err, ErrOutOfStock) {
		t.Errorf("expected ErrOutOfStock, got %v", err)
	}
	if !ledger.IsEmpty() {
		t.Error("failed add must not mutate the basket")
	}
}

func TestAddItem_StockBoundary(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 3)

	if _, err := ledger.AddItem(product, 4, nil); !errors.Is(err, ErrExceedsStock) {
		t.Errorf("expected ErrExceedsStock for qty+1, got %v", err)
	}
	if *product.Qty != 3 {
		t.Errorf("rejected add must not touch stock, got %d", *product.Qty)
	}

	if _, err := ledger.AddItem(product, 3, nil); err != nil {
		t.Fatalf("adding exact stock: %v", err)
	}
	if *product.Qty != 0 {
		t.Errorf("expected qty 0 after exact-stock add, got %d", *product.Qty)
	}
}

func TestAddItem_VariantStockAuthoritative(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 0)
	// product itself is out of stock, but IsOutOfStock gates the add before
	// the variant is even looked at
	if _, err := ledger.AddItem(product, 1, &VariantRecord{VariantID: "1", Stock: Int64Ptr(5)}); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	product2 := testProduct("11", 100, 19, 1)
	variant := &VariantRecord{VariantID: "1", Stock: Int64Ptr(2)}
	if _, err := ledger.AddItem(product2, 2, variant); err != nil {
		t.Fatalf("variant stock should allow 2: %v", err)
	}
	if *variant.Stock != 0 {
		t.Errorf("expected variant stock 0, got %d", *variant.Stock)
	}
	if *product2.Qty != 1 {
		t.Errorf("variant-tracked add must not touch product qty, got %d", *product2.Qty)
	}
}

func TestAddItem_InfiniteStockNeverDeducted(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := &Product{ID: "10", Price: decimal.NewFromInt(100), Tax: 19}

	if _, err := ledger.AddItem(product, 50, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if product.Qty != nil {
		t.Error("infinite-stock product must stay untracked")
	}
}

func TestRemoveItem_RestoresStock(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 5)

	if _, err := ledger.AddItem(product, 3, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := ledger.RemoveItem(product, 1, nil); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}

	if *product.Qty != 3 {
		t.Errorf("expected qty 3 after partial remove, got %d", *product.Qty)
	}

	if _, err := ledger.RemoveItem(product, 2, nil); err != nil {
		t.Fatalf("RemoveItem rest: %v", err)
	}
	if *product.Qty != 5 {
		t.Errorf("stock must be conserved, expected 5, got %d", *product.Qty)
	}
	if !ledger.IsEmpty() {
		t.Error("line with quantity zero must be removed")
	}
}

func TestRemoveItem_NotFound(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 5)

	_, err := ledger.RemoveItem(product, 1, nil)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *NotFoundError, got %T", err)
	}
	if notFound.ProductID != "10" {
		t.Errorf("expected product id 10, got %q", notFound.ProductID)
	}
	if !strings.Contains(err.Error(), "10") || !strings.Contains(err.Error(), "undefined") {
		t.Errorf("message must identify product id and absent variant, got %q", err.Error())
	}
}

func TestRemoveItem_InsufficientQuantity(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 5)

	if _, err := ledger.AddItem(product, 2, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := ledger.RemoveItem(product, 3, nil); !errors.Is(err, ErrInsufficientQuantity) {
		t.Errorf("expected ErrInsufficientQuantity, got %v", err)
	}
	if *product.Qty != 3 {
		t.Errorf("rejected remove must not touch stock, got %d", *product.Qty)
	}
}

func TestIncreaseDecrease(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 10)

	item, err := ledger.AddItem(product, 1, nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if item, err = ledger.Increase(item, 3); err != nil {
		t.Fatalf("Increase: %v", err)
	}
	if item.Quantity != 4 {
		t.Errorf("expected quantity 4, got %d", item.Quantity)
	}

	if item, err = ledger.IncreaseOne(item); err != nil {
		t.Fatalf("IncreaseOne: %v", err)
	}
	if item.Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", item.Quantity)
	}

	if item, err = ledger.Decrease(item, 2); err != nil {
		t.Fatalf("Decrease: %v", err)
	}
	if item, err = ledger.DecreaseOne(item); err != nil {
		t.Fatalf("DecreaseOne: %v", err)
	}
	if item.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", item.Quantity)
	}
	if *product.Qty != 8 {
		t.Errorf("expected qty 8, got %d", *product.Qty)
	}
}

func TestCanBeIncreasedBy(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 3)

	item, err := ledger.AddItem(product, 2, nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if !ledger.CanBeIncreasedBy(item, 1) {
		t.Error("expected increase by 1 to be possible")
	}
	if ledger.CanBeIncreasedBy(item, 2) {
		t.Error("expected increase by 2 to be rejected")
	}
	if item.Quantity != 2 || *product.Qty != 1 {
		t.Error("capacity check must not mutate")
	}
}

func TestCoupons(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	if err := ledger.AddCoupon(Coupon{Code: "SAVE10", Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("AddCoupon: %v", err)
	}
	if err := ledger.AddCoupon(Coupon{Code: "SAVE10", Amount: decimal.NewFromInt(99)}); err != nil {
		t.Fatalf("duplicate AddCoupon: %v", err)
	}

	coupons := ledger.ActiveCoupons()
	if len(coupons) != 1 {
		t.Fatalf("duplicate code must be ignored, got %d coupons", len(coupons))
	}
	if !coupons[0].Amount.Equal(decimal.NewFromInt(10)) {
		t.Error("duplicate add must not overwrite the original coupon")
	}

	if err := ledger.RemoveCoupon("NOPE"); err != nil {
		t.Errorf("removing unknown coupon must not fail, got %v", err)
	}
	if err := ledger.RemoveCoupon("SAVE10"); err != nil {
		t.Fatalf("RemoveCoupon: %v", err)
	}
	if len(ledger.ActiveCoupons()) != 0 {
		t.Error("expected no active coupons")
	}
}

func TestClearAndClearCoupons(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 5)

	if _, err := ledger.AddItem(product, 1, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := ledger.AddCoupon(Coupon{Code: "SAVE10", Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("AddCoupon: %v", err)
	}

	ledger.ClearCoupons()
	if len(ledger.ActiveCoupons()) != 0 {
		t.Error("expected coupons cleared")
	}
	if ledger.IsEmpty() {
		t.Error("clearing coupons must keep the items")
	}

	ledger.Clear()
	if !ledger.IsEmpty() {
		t.Error("expected empty basket after Clear")
	}
}

func TestCustomIdentityFunc(t *testing.T) {
	storage := newStubStorage()
	// identity by product only: any variant merges into the same line
	ledger, err := New(storage, stubConfig(nil), WithIdentityFunc(
		func(productA *Product, _ Variant, productB *Product, _ Variant) bool {
			return productA.ID == productB.ID
		},
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	product := testProduct("10", 100, 19, 10)
	if _, err := ledger.AddItem(product, 1, &VariantRecord{VariantID: "a"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := ledger.AddItem(product, 1, &VariantRecord{VariantID: "b"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if got := len(ledger.Items()); got != 1 {
		t.Errorf("custom identity should merge both variants, got %d lines", got)
	}
}

func TestEventsEmittedAfterPersist(t *testing.T) {
	ledger, storage := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 5)

	var events []string
	ledger.Subscribe(func(l *Ledger, e event.Event) {
		// by the time a listener runs, the persisted items must already
		// include the mutation
		if e.EventName() == EventItemAdded {
			data, ok := storage.Get(StoreItemsKey)
			if !ok || !strings.Contains(string(data), `"10"`) {
				t.Error("event observed before persistence")
			}
		}
		events = append(events, e.EventName())
	})

	if _, err := ledger.AddItem(product, 1, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := ledger.RemoveItem(product, 1, nil); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if err := ledger.AddCoupon(Coupon{Code: "C", Amount: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("AddCoupon: %v", err)
	}
	if err := ledger.RemoveCoupon("C"); err != nil {
		t.Fatalf("RemoveCoupon: %v", err)
	}
	ledger.ClearCoupons()
	ledger.Clear()

	want := []string{
		EventItemAdded,
		EventItemRemoved,
		EventCouponAdded,
		EventCouponRemoved,
		EventCouponsCleared,
		EventCleared,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d (%v)", len(want), len(events), events)
	}
	for i, name := range want {
		if events[i] != name {
			t.Errorf("event %d: expected %s, got %s", i, name, events[i])
		}
	}
}

func TestDuplicateCouponEmitsNothing(t *testing.T) {
	ledger, storage := newTestLedger(t, nil)

	if err := ledger.AddCoupon(Coupon{Code: "SAVE10", Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("AddCoupon: %v", err)
	}

	setsBefore := storage.sets
	fired := false
	ledger.Subscribe(func(*Ledger, event.Event) { fired = true })

	if err := ledger.AddCoupon(Coupon{Code: "SAVE10", Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("duplicate AddCoupon: %v", err)
	}

	if fired {
		t.Error("duplicate coupon must not emit an event")
	}
	if storage.sets != setsBefore {
		t.Error("duplicate coupon must not write to storage")
	}
}

func TestUnsubscribe(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 5)

	calls := 0
	unsubscribe := ledger.Subscribe(func(*Ledger, event.Event) { calls++ })

	if _, err := ledger.AddItem(product, 1, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	unsubscribe()
	if _, err := ledger.AddItem(product, 1, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected 1 listener call, got %d", calls)
	}
}

func TestItemsReturnsSnapshotSlice(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 5)

	if _, err := ledger.AddItem(product, 1, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	items := ledger.Items()
	items[0] = nil

	if got := ledger.Items(); len(got) != 1 || got[0] == nil {
		t.Error("mutating the returned slice must not affect the ledger")
	}
}

func TestFind(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	product := testProduct("10", 100, 19, 5)
	other := testProduct("11", 50, 19, 5)

	if _, err := ledger.AddItem(product, 1, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := ledger.AddItem(other, 2, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	found := ledger.Find(func(item *LineItem) bool { return item.Quantity == 2 })
	if found == nil || found.Product.ID != "11" {
		t.Errorf("expected to find product 11, got %+v", found)
	}
	if missing := ledger.Find(func(*LineItem) bool { return false }); missing != nil {
		t.Errorf("expected nil for no match, got %+v", missing)
	}
}
