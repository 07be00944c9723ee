package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/repcompanion/repcompanion/pkg/models"
)

func testProducts() []*models.Product {
	return []*models.Product{
		{ID: "p1", Name: "ATTUNE™ Knee System", Category: "knee", SKU: "ATK-001", Description: "Primary knee", CompatibleWith: []string{"ATTUNE™ Revision", "SIGMA Instruments"}},
		{ID: "p2", Name: "ACTIS™ Total Hip", Category: "hip", SKU: "ACT-100", Description: "Collared stem", CompatibleWith: []string{"PINNACLE™ Cup"}},
		{ID: "p3", Name: "PINNACLE™ Acetabular Cup", Category: "hip", SKU: "PIN-200", Description: "Porous cup", CompatibleWith: []string{}},
		{ID: "p4", Name: "SIGMA Knee Tray", Category: "knee", SKU: "SIG-9", Description: "Instrument tray", CompatibleWith: []string{""}},
		{ID: "p5", Name: "TFNA Nail", Category: "trauma", SKU: "TFN-1", Description: "Femoral nail for hip fracture", CompatibleWith: []string{}},
	}
}

func newTestService() *Service {
	return NewService(NewMemoryProductRepo(testProducts()))
}

func productIDs(products []*models.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}

func TestListProducts(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		name   string
		filter ProductFilter
		want   []string
	}{
		{"all", ProductFilter{}, []string{"p1", "p2", "p3", "p4", "p5"}},
		{"query on name", ProductFilter{Query: "attune"}, []string{"p1"}},
		{"query on description", ProductFilter{Query: "HIP FRACTURE"}, []string{"p5"}},
		{"query on category", ProductFilter{Query: "hip"}, []string{"p2", "p3", "p5"}},
		{"category", ProductFilter{Category: "knee"}, []string{"p1", "p4"}},
		{"query and category", ProductFilter{Query: "hip", Category: "hip"}, []string{"p2", "p3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListProducts(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, productIDs(got)); diff != "" {
				t.Errorf("product ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCategories(t *testing.T) {
	got, err := newTestService().Categories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []CategoryCount{{"hip", 2}, {"knee", 2}, {"trauma", 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	if _, err := newTestService().GetProduct(context.Background(), "p404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCompatible(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		id   string
		want []string
	}{
		// "ATTUNE" matches p1 itself, "SIGMA" matches p4.
		{"p1", []string{"p1", "p4"}},
		{"p2", []string{"p3"}},
		{"p3", []string{}},
		// Empty fragments match nothing.
		{"p4", []string{}},
	}
	for _, tt := range tests {
		got, err := svc.Compatible(context.Background(), tt.id)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.id, err)
		}
		if diff := cmp.Diff(tt.want, productIDs(got)); diff != "" {
			t.Errorf("%s: compatible (-want +got):\n%s", tt.id, diff)
		}
	}
}

func TestGroupByCategory(t *testing.T) {
	groups := GroupByCategory(testProducts())
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].Category != "knee" || groups[1].Category != "hip" || groups[2].Category != "trauma" {
		t.Errorf("expected first-seen order, got %s %s %s", groups[0].Category, groups[1].Category, groups[2].Category)
	}
	if diff := cmp.Diff([]string{"p1", "p4"}, productIDs(groups[0].Products)); diff != "" {
		t.Errorf("knee group (-want +got):\n%s", diff)
	}
	if len(GroupByCategory(nil)) != 0 {
		t.Error("expected no groups for empty input")
	}
}
