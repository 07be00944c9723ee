package workflow

import (
	"context"

	"github.com/repcompanion/repcompanion/pkg/models"
)

// BrowseHospitals lists the hospitals that have surgical workflows.
func (s *Service) BrowseHospitals(ctx context.Context) ([]*models.Hospital, error) {
	return s.dir.SurgicalHospitals(ctx)
}

func (s *Service) BrowseHospital(ctx context.Context, hospitalID string) (*HospitalView, error) {
	h, err := s.hospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	doctors, err := s.dir.DoctorsByHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	return &HospitalView{Hospital: h, Doctors: doctors}, nil
}

func (s *Service) BrowseDoctor(ctx context.Context, hospitalID, doctorID string) (*DoctorView, error) {
	h, err := s.hospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	d, err := s.doctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	procedures, err := s.DoctorProcedures(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	available, err := s.AvailableTemplates(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return &DoctorView{Hospital: h, Doctor: d, Procedures: procedures, AvailableTemplates: available}, nil
}

// BrowseOperation resolves every path segment of the operation detail page.
// The error names the first entity that does not exist.
func (s *Service) BrowseOperation(ctx context.Context, hospitalID, doctorID, operationID string) (*OperationView, error) {
	h, err := s.hospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	d, err := s.doctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	op, err := s.GetOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}

	tags, ok := s.store.MetaTags(ctx, op.ID)
	if !ok {
		tags = effectiveTags(op)
	}
	products, err := s.resolveProducts(ctx, s.productIDs(ctx, op))
	if err != nil {
		return nil, err
	}

	steps := make([]StepView, len(op.Steps))
	for i, st := range op.Steps {
		resolved, err := s.resolveProducts(ctx, st.Products)
		if err != nil {
			return nil, err
		}
		steps[i] = StepView{OperationStep: st, ResolvedProducts: resolved}
	}

	return &OperationView{
		Hospital:     h,
		Doctor:       d,
		Operation:    op,
		MetaTags:     tags,
		ProductsUsed: products,
		Steps:        steps,
	}, nil
}
