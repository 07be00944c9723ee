package catalog

import (
	"context"
	"fmt"

	"github.com/repcompanion/repcompanion/pkg/models"
)

type ProductRepository interface {
	List(ctx context.Context) ([]*models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
}

type memoryProductRepo struct {
	products []*models.Product
}

// NewMemoryProductRepo serves a fixed product list. The catalogue has no
// editor, so the slice is shared read-only.
func NewMemoryProductRepo(products []*models.Product) ProductRepository {
	return &memoryProductRepo{products: products}
}

func (r *memoryProductRepo) List(_ context.Context) ([]*models.Product, error) {
	return append([]*models.Product(nil), r.products...), nil
}

func (r *memoryProductRepo) GetByID(_ context.Context, id string) (*models.Product, error) {
	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}
