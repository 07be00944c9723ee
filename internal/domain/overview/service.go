package overview

import (
	"context"
	"errors"
	"fmt"

	"github.com/repcompanion/repcompanion/internal/domain/catalog"
	"github.com/repcompanion/repcompanion/internal/domain/directory"
	"github.com/repcompanion/repcompanion/pkg/models"
)

type Directory interface {
	ListDoctors(ctx context.Context, f directory.DoctorFilter) ([]*models.Doctor, error)
	ListHospitals(ctx context.Context, f directory.HospitalFilter) ([]directory.HospitalRow, error)
	GetDoctor(ctx context.Context, id string) (*models.Doctor, error)
	HospitalsForDoctor(ctx context.Context, d *models.Doctor) ([]*models.Hospital, error)
}

type Catalog interface {
	ListProducts(ctx context.Context, f catalog.ProductFilter) ([]*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	Compatible(ctx context.Context, id string) ([]*models.Product, error)
}

// Procedures lists the operations a doctor performs.
type Procedures interface {
	DoctorProcedures(ctx context.Context, doctorID string) ([]*models.Operation, error)
}

// Notes lists a doctor's call notes, newest first.
type Notes interface {
	ForDoctor(ctx context.Context, doctorID string) []*models.CallNote
}

type Service struct {
	dir        Directory
	catalog    Catalog
	procedures Procedures
	notes      Notes
}

func NewService(dir Directory, cat Catalog, procedures Procedures, notes Notes) *Service {
	return &Service{dir: dir, catalog: cat, procedures: procedures, notes: notes}
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	hospitals, err := s.dir.ListHospitals(ctx, directory.HospitalFilter{})
	if err != nil {
		return nil, err
	}
	doctors, err := s.dir.ListDoctors(ctx, directory.DoctorFilter{})
	if err != nil {
		return nil, err
	}
	products, err := s.catalog.ListProducts(ctx, catalog.ProductFilter{})
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		HospitalCount:  len(hospitals),
		SurgeonCount:   len(doctors),
		ProductCount:   len(products),
		RecentSurgeons: head(doctors, dashboardSurgeons),
		RecentProducts: head(products, dashboardProducts),
	}, nil
}

// DoctorProfile resolves the doctor's hospitals and procedures and their
// most recent call notes.
func (s *Service) DoctorProfile(ctx context.Context, id string) (*DoctorProfile, error) {
	d, err := s.dir.GetDoctor(ctx, id)
	if errors.Is(err, directory.ErrNotFound) {
		return nil, fmt.Errorf("doctor %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	hospitals, err := s.dir.HospitalsForDoctor(ctx, d)
	if err != nil {
		return nil, err
	}
	ops, err := s.procedures.DoctorProcedures(ctx, id)
	if err != nil {
		return nil, err
	}
	notes := s.notes.ForDoctor(ctx, id)
	return &DoctorProfile{
		Doctor:      d,
		Hospitals:   hospitals,
		Operations:  ops,
		RecentNotes: head(notes, profileNotes),
		NoteCount:   len(notes),
	}, nil
}

// ProductDetail returns the product with its compatible products and the
// first few doctors as related doctors.
func (s *Service) ProductDetail(ctx context.Context, id string) (*ProductDetail, error) {
	p, err := s.catalog.GetProduct(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	compatible, err := s.catalog.Compatible(ctx, id)
	if err != nil {
		return nil, err
	}
	doctors, err := s.dir.ListDoctors(ctx, directory.DoctorFilter{})
	if err != nil {
		return nil, err
	}
	return &ProductDetail{Product: p, Compatible: compatible, RelatedDoctors: head(doctors, relatedDoctors)}, nil
}
