package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/repcompanion/repcompanion/pkg/models"
)

type Service struct {
	doctors   DoctorRepository
	hospitals HospitalRepository
	now       func() time.Time
}

func NewService(doctors DoctorRepository, hospitals HospitalRepository) *Service {
	return &Service{doctors: doctors, hospitals: hospitals, now: time.Now}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func contains(field, query string) bool {
	return strings.Contains(strings.ToLower(field), query)
}

// -- Doctors --

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter) ([]*models.Doctor, error) {
	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return nil, err
	}
	var regionHospitals map[string]bool
	if f.Region != "" {
		hospitals, err := s.hospitals.List(ctx)
		if err != nil {
			return nil, err
		}
		regionHospitals = map[string]bool{}
		for _, h := range hospitals {
			if h.City == f.Region {
				regionHospitals[h.ID] = true
			}
		}
	}

	q := strings.ToLower(f.Query)
	out := []*models.Doctor{}
	for _, d := range doctors {
		if q != "" && !contains(d.Name, q) && !contains(d.Specialty, q) && !contains(d.Email, q) {
			continue
		}
		if regionHospitals != nil && !anyIn(d.HospitalIDs, regionHospitals) {
			continue
		}
		if f.HospitalID != "" && !d.HasHospital(f.HospitalID) {
			continue
		}
		if f.Specialty != "" && d.Specialty != f.Specialty {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func anyIn(ids []string, set map[string]bool) bool {
	for _, id := range ids {
		if set[id] {
			return true
		}
	}
	return false
}

// DoctorFacets returns the sorted regions and specialties, and the hospitals
// selectable once region is chosen.
func (s *Service) DoctorFacets(ctx context.Context, region string) (*DoctorFacets, error) {
	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return nil, err
	}
	hospitals, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, err
	}

	facets := &DoctorFacets{Hospitals: []*models.Hospital{}}
	cities := make([]string, 0, len(hospitals))
	for _, h := range hospitals {
		cities = append(cities, h.City)
		if region == "" || h.City == region {
			facets.Hospitals = append(facets.Hospitals, h)
		}
	}
	specialties := make([]string, 0, len(doctors))
	for _, d := range doctors {
		specialties = append(specialties, d.Specialty)
	}
	facets.Regions = uniqueSorted(cities)
	facets.Specialties = uniqueSorted(specialties)
	return facets, nil
}

func uniqueSorted(values []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s *Service) GetDoctor(ctx context.Context, id string) (*models.Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// DoctorsByHospital returns exactly the doctors whose hospitalIds contain
// hospitalID.
func (s *Service) DoctorsByHospital(ctx context.Context, hospitalID string) ([]*models.Doctor, error) {
	return s.ListDoctors(ctx, DoctorFilter{HospitalID: hospitalID})
}

// HospitalsForDoctor resolves the doctor's hospital ids, skipping unknown ones.
func (s *Service) HospitalsForDoctor(ctx context.Context, d *models.Doctor) ([]*models.Hospital, error) {
	out := []*models.Hospital{}
	for _, id := range d.HospitalIDs {
		h, err := s.hospitals.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func validateDoctor(d *models.Doctor) error {
	if d.Name == "" {
		return invalid("name is required")
	}
	if d.Specialty == "" {
		return invalid("specialty is required")
	}
	if len(d.HospitalIDs) == 0 {
		return invalid("at least one hospital is required")
	}
	return nil
}

func (in DoctorInput) applyTo(d *models.Doctor) {
	d.Name = strings.TrimSpace(in.Name)
	d.Specialty = in.Specialty
	d.Email = strings.TrimSpace(in.Email)
	d.Phone = strings.TrimSpace(in.Phone)
	d.Address = strings.TrimSpace(in.Address)
	if in.ImageURL != "" {
		d.ImageURL = in.ImageURL
	}
	d.HospitalIDs = nonNil(in.HospitalIDs)
	d.Operations = nonNil(in.Operations)
	d.Preferences = nonNil(in.Preferences)
	d.Notes = in.Notes
}

// CreateDoctor adds a doctor with a time-based id, today's date as the last
// visit and the default photo when none is given.
func (s *Service) CreateDoctor(ctx context.Context, in DoctorInput) (*models.Doctor, error) {
	now := s.now()
	d := &models.Doctor{ImageURL: DefaultDoctorImage, LastVisit: now.Format(models.DateLayout)}
	in.applyTo(d)
	if err := validateDoctor(d); err != nil {
		return nil, err
	}

	id, err := s.freeID(ctx, "d", now, func(id string) error {
		_, err := s.doctors.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.ID = id
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// freeID returns prefix+unixMillis, advancing the millisecond until lookup
// reports the id unused.
func (s *Service) freeID(ctx context.Context, prefix string, now time.Time, lookup func(string) error) (string, error) {
	ms := now.UnixMilli()
	for {
		id := fmt.Sprintf("%s%d", prefix, ms)
		err := lookup(id)
		if errors.Is(err, ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
		ms++
	}
}

func (s *Service) UpdateDoctor(ctx context.Context, id string, in DoctorInput) (*models.Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(d)
	if err := validateDoctor(d); err != nil {
		return nil, err
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// PatchDoctor applies a profile edit of one or more fields.
func (s *Service) PatchDoctor(ctx context.Context, id string, p DoctorPatch) (*models.Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.apply(d)
	d.Name = strings.TrimSpace(d.Name)
	if err := validateDoctor(d); err != nil {
		return nil, err
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDoctor removes the doctor. Call notes and hospital rosters that
// mention the doctor are left as they are.
func (s *Service) DeleteDoctor(ctx context.Context, id string) error {
	return s.doctors.Delete(ctx, id)
}

// -- Hospitals --

func (s *Service) ListHospitals(ctx context.Context, f HospitalFilter) ([]HospitalRow, error) {
	hospitals, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, err
	}
	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(f.Query)
	rows := []HospitalRow{}
	for _, h := range hospitals {
		if q != "" && !contains(h.Name, q) && !contains(h.City, q) && !contains(h.Code, q) {
			continue
		}
		if f.City != "" && f.City != FilterAll && h.City != f.City {
			continue
		}
		if f.HealthAuthority != "" && f.HealthAuthority != FilterAll && h.HealthAuthority != f.HealthAuthority {
			continue
		}
		rows = append(rows, HospitalRow{Hospital: h, DoctorCount: countDoctors(doctors, h.ID)})
	}
	return rows, nil
}

func countDoctors(doctors []*models.Doctor, hospitalID string) int {
	n := 0
	for _, d := range doctors {
		if d.HasHospital(hospitalID) {
			n++
		}
	}
	return n
}

func (s *Service) HospitalFacets(ctx context.Context) (*HospitalFacets, error) {
	hospitals, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, err
	}
	var cities, authorities []string
	for _, h := range hospitals {
		cities = append(cities, h.City)
		authorities = append(authorities, h.HealthAuthority)
	}
	return &HospitalFacets{Cities: uniqueSorted(cities), HealthAuthorities: uniqueSorted(authorities)}, nil
}

func (s *Service) GetHospital(ctx context.Context, id string) (*models.Hospital, error) {
	return s.hospitals.GetByID(ctx, id)
}

// SurgicalHospitals returns the hospitals shown in the workflow browser.
func (s *Service) SurgicalHospitals(ctx context.Context) ([]*models.Hospital, error) {
	hospitals, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []*models.Hospital{}
	for _, h := range hospitals {
		if h.HasSurgicalWorkflows {
			out = append(out, h)
		}
	}
	return out, nil
}

func (in *HospitalInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.City = strings.TrimSpace(in.City)
	if in.Name == "" {
		return invalid("name is required")
	}
	if in.City == "" {
		return invalid("city is required")
	}
	return nil
}

func (s *Service) CreateHospital(ctx context.Context, in HospitalInput) (*models.Hospital, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	id, err := s.freeID(ctx, "h", s.now(), func(id string) error {
		_, err := s.hospitals.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	h := &models.Hospital{
		ID:                   id,
		Name:                 in.Name,
		City:                 in.City,
		HasSurgicalWorkflows: in.HasSurgicalWorkflows,
		Doctors:              []string{},
	}
	if err := s.hospitals.Create(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// UpdateHospital changes the name, city and workflow flag. Other fields are
// not editable.
func (s *Service) UpdateHospital(ctx context.Context, id string, in HospitalInput) (*models.Hospital, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	h, err := s.hospitals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	h.Name = in.Name
	h.City = in.City
	h.HasSurgicalWorkflows = in.HasSurgicalWorkflows
	if err := s.hospitals.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) ToggleSurgicalWorkflows(ctx context.Context, id string) (*models.Hospital, error) {
	h, err := s.hospitals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	h.HasSurgicalWorkflows = !h.HasSurgicalWorkflows
	if err := s.hospitals.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// DeleteHospital removes the hospital. Doctors keep their references to it.
func (s *Service) DeleteHospital(ctx context.Context, id string) error {
	return s.hospitals.Delete(ctx, id)
}
