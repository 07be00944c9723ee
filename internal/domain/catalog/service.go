package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/repcompanion/repcompanion/pkg/models"
)

type Service struct {
	products ProductRepository
}

func NewService(products ProductRepository) *Service {
	return &Service{products: products}
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]*models.Product, error) {
	all, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(f.Query)
	out := []*models.Product{}
	for _, p := range all {
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) &&
			!strings.Contains(strings.ToLower(p.Category), q) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Categories returns every category, sorted, with its count over the whole
// catalogue.
func (s *Service) Categories(ctx context.Context) ([]CategoryCount, error) {
	all, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, p := range all {
		counts[p.Category]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.products.GetByID(ctx, id)
}

// Compatible returns the catalogue products whose name contains, for any of
// the product's compatibleWith entries, either the text before "™" or the
// first word. Matching is case-sensitive and may include the product itself.
func (s *Service) Compatible(ctx context.Context, id string) ([]*models.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	all, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}

	var fragments []string
	for _, c := range product.CompatibleWith {
		if brand, _, _ := strings.Cut(c, "™"); brand != "" {
			fragments = append(fragments, brand)
		}
		if word, _, _ := strings.Cut(c, " "); word != "" {
			fragments = append(fragments, word)
		}
	}

	out := []*models.Product{}
	for _, p := range all {
		for _, f := range fragments {
			if strings.Contains(p.Name, f) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}
