package workflow

import (
	"context"

	"github.com/repcompanion/repcompanion/internal/domain/catalog"
	"github.com/repcompanion/repcompanion/pkg/models"
)

// TemplateRepository stores workflow templates. Implementations return deep
// copies.
type TemplateRepository interface {
	List(ctx context.Context) ([]*models.Operation, error)
	GetByID(ctx context.Context, id string) (*models.Operation, error)
	Create(ctx context.Context, op *models.Operation) error
	Update(ctx context.Context, op *models.Operation) error
	Delete(ctx context.Context, id string) error
}

// Directory resolves hospitals and doctors for the workflow browser.
type Directory interface {
	GetHospital(ctx context.Context, id string) (*models.Hospital, error)
	GetDoctor(ctx context.Context, id string) (*models.Doctor, error)
	SurgicalHospitals(ctx context.Context) ([]*models.Hospital, error)
	DoctorsByHospital(ctx context.Context, hospitalID string) ([]*models.Doctor, error)
}

// Catalog resolves product ids.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, f catalog.ProductFilter) ([]*models.Product, error)
}
