package directory

import (
	"context"

	"github.com/repcompanion/repcompanion/pkg/models"
)

// DoctorRepository stores doctors. Implementations return copies; callers
// may modify what they get back without affecting stored records.
type DoctorRepository interface {
	List(ctx context.Context) ([]*models.Doctor, error)
	GetByID(ctx context.Context, id string) (*models.Doctor, error)
	Create(ctx context.Context, d *models.Doctor) error
	Update(ctx context.Context, d *models.Doctor) error
	Delete(ctx context.Context, id string) error
}

// HospitalRepository stores hospitals with the same copy semantics.
type HospitalRepository interface {
	List(ctx context.Context) ([]*models.Hospital, error)
	GetByID(ctx context.Context, id string) (*models.Hospital, error)
	Create(ctx context.Context, h *models.Hospital) error
	Update(ctx context.Context, h *models.Hospital) error
	Delete(ctx context.Context, id string) error
}
