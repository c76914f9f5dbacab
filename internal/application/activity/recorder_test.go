package activity

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/sofa/sofa-basket-service/internal/domain/basket"
)

type seqGenerator struct{ n int }

func (g *seqGenerator) NewID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func TestRecorder_RecordsEntries(t *testing.T) {
	recorder := NewRecorder(10, &seqGenerator{}, nil)
	ctx := context.Background()

	item := &domain.LineItem{
		Product:  &domain.Product{ID: "1001", Price: decimal.NewFromInt(100), Tax: 19},
		Variant:  &domain.VariantRecord{VariantID: "color", OptionID: "black"},
		Quantity: 2,
	}
	if err := recorder.handle(ctx, domain.ItemAddedEvent{Item: item}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := recorder.handle(ctx, domain.CouponAddedEvent{Coupon: &domain.Coupon{Code: "SAVE10"}}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	// a coupon removal for an unknown code carries no coupon at all
	if err := recorder.handle(ctx, domain.CouponRemovedEvent{}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	entries := recorder.Recent()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	added := entries[0]
	if added.Event != domain.EventItemAdded || added.ProductID != "1001" ||
		added.VariantID != "color" || added.Quantity != 2 {
		t.Errorf("unexpected item entry: %+v", added)
	}
	if added.EventID != "id-1" {
		t.Errorf("expected generated event id, got %q", added.EventID)
	}
	if entries[1].CouponCode != "SAVE10" {
		t.Errorf("unexpected coupon entry: %+v", entries[1])
	}
	if entries[2].CouponCode != "" {
		t.Errorf("nil coupon must leave the code empty: %+v", entries[2])
	}
}

func TestRecorder_BoundedJournal(t *testing.T) {
	recorder := NewRecorder(2, &seqGenerator{}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := recorder.handle(ctx, domain.ClearedEvent{}); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	entries := recorder.Recent()
	if len(entries) != 2 {
		t.Fatalf("expected journal capped at 2, got %d", len(entries))
	}
	// newest entries survive
	if entries[0].EventID != "id-4" || entries[1].EventID != "id-5" {
		t.Errorf("expected the two newest entries, got %+v", entries)
	}
}

func TestRecorder_RecentReturnsCopy(t *testing.T) {
	recorder := NewRecorder(10, &seqGenerator{}, nil)

	if err := recorder.handle(context.Background(), domain.ClearedEvent{}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	entries := recorder.Recent()
	entries[0].Event = "tampered"

	if got := recorder.Recent()[0].Event; got != domain.EventCleared {
		t.Errorf("mutating the returned slice must not affect the journal, got %q", got)
	}
}
