package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/repcompanion/repcompanion/pkg/models"
)

type memoryDoctorRepo struct {
	mu      sync.RWMutex
	doctors []*models.Doctor
}

// NewMemoryDoctorRepo returns a repository holding copies of doctors in the
// given order.
func NewMemoryDoctorRepo(doctors []*models.Doctor) DoctorRepository {
	r := &memoryDoctorRepo{}
	for _, d := range doctors {
		r.doctors = append(r.doctors, d.Clone())
	}
	return r
}

func (r *memoryDoctorRepo) List(_ context.Context) ([]*models.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Doctor, len(r.doctors))
	for i, d := range r.doctors {
		out[i] = d.Clone()
	}
	return out, nil
}

func (r *memoryDoctorRepo) GetByID(_ context.Context, id string) (*models.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.index(id); i >= 0 {
		return r.doctors[i].Clone(), nil
	}
	return nil, fmt.Errorf("doctor %s: %w", id, ErrNotFound)
}

func (r *memoryDoctorRepo) Create(_ context.Context, d *models.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(d.ID) >= 0 {
		return fmt.Errorf("doctor %s already exists", d.ID)
	}
	r.doctors = append(r.doctors, d.Clone())
	return nil
}

func (r *memoryDoctorRepo) Update(_ context.Context, d *models.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(d.ID)
	if i < 0 {
		return fmt.Errorf("doctor %s: %w", d.ID, ErrNotFound)
	}
	r.doctors[i] = d.Clone()
	return nil
}

func (r *memoryDoctorRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("doctor %s: %w", id, ErrNotFound)
	}
	r.doctors = append(r.doctors[:i], r.doctors[i+1:]...)
	return nil
}

func (r *memoryDoctorRepo) index(id string) int {
	for i, d := range r.doctors {
		if d.ID == id {
			return i
		}
	}
	return -1
}

type memoryHospitalRepo struct {
	mu        sync.RWMutex
	hospitals []*models.Hospital
}

// NewMemoryHospitalRepo returns a repository holding copies of hospitals.
func NewMemoryHospitalRepo(hospitals []*models.Hospital) HospitalRepository {
	r := &memoryHospitalRepo{}
	for _, h := range hospitals {
		r.hospitals = append(r.hospitals, h.Clone())
	}
	return r
}

func (r *memoryHospitalRepo) List(_ context.Context) ([]*models.Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Hospital, len(r.hospitals))
	for i, h := range r.hospitals {
		out[i] = h.Clone()
	}
	return out, nil
}

func (r *memoryHospitalRepo) GetByID(_ context.Context, id string) (*models.Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.index(id); i >= 0 {
		return r.hospitals[i].Clone(), nil
	}
	return nil, fmt.Errorf("hospital %s: %w", id, ErrNotFound)
}

func (r *memoryHospitalRepo) Create(_ context.Context, h *models.Hospital) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(h.ID) >= 0 {
		return fmt.Errorf("hospital %s already exists", h.ID)
	}
	r.hospitals = append(r.hospitals, h.Clone())
	return nil
}

func (r *memoryHospitalRepo) Update(_ context.Context, h *models.Hospital) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(h.ID)
	if i < 0 {
		return fmt.Errorf("hospital %s: %w", h.ID, ErrNotFound)
	}
	r.hospitals[i] = h.Clone()
	return nil
}

func (r *memoryHospitalRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("hospital %s: %w", id, ErrNotFound)
	}
	r.hospitals = append(r.hospitals[:i], r.hospitals[i+1:]...)
	return nil
}

func (r *memoryHospitalRepo) index(id string) int {
	for i, h := range r.hospitals {
		if h.ID == id {
			return i
		}
	}
	return -1
}
