// Package directory serves the hospital and surgeon directories and their
// admin editors. Records start from the seed data set and admin edits are
// kept in process memory.
package directory

import (
	"errors"

	"github.com/repcompanion/repcompanion/pkg/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// DefaultDoctorImage is assigned to doctors created without a photo.
const DefaultDoctorImage = "/professional-doctor.png"

// DoctorFilter selects doctors in the directory view. Empty fields match
// everything. Query is a case-insensitive substring of name, specialty or
// email; Region is the exact city of any of the doctor's hospitals.
type DoctorFilter struct {
	Query      string
	Region     string
	HospitalID string
	Specialty  string
}

// HospitalFilter selects hospitals. City and HealthAuthority are exact; the
// value "all" disables them.
type HospitalFilter struct {
	Query           string
	City            string
	HealthAuthority string
}

// FilterAll disables an exact-match hospital filter.
const FilterAll = "all"

// HospitalRow is a hospital as listed, with the number of doctors that
// practise there.
type HospitalRow struct {
	*models.Hospital
	DoctorCount int `json:"doctorCount"`
}

// DoctorFacets are the choices offered by the doctor filter panel.
type DoctorFacets struct {
	Regions     []string           `json:"regions"`
	Specialties []string           `json:"specialties"`
	Hospitals   []*models.Hospital `json:"hospitals"`
}

// HospitalFacets are the choices offered by the hospital filter panel.
type HospitalFacets struct {
	Cities            []string `json:"cities"`
	HealthAuthorities []string `json:"healthAuthorities"`
}

// DoctorInput is the body of the admin create and update forms.
type DoctorInput struct {
	Name        string   `json:"name"`
	Specialty   string   `json:"specialty"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Address     string   `json:"address"`
	ImageURL    string   `json:"imageUrl"`
	HospitalIDs []string `json:"hospitalIds"`
	Operations  []string `json:"operations"`
	Preferences []string `json:"preferences"`
	Notes       string   `json:"notes"`
}

// DoctorPatch changes individual profile fields. Nil fields are left alone.
type DoctorPatch struct {
	Name        *string   `json:"name"`
	Specialty   *string   `json:"specialty"`
	Email       *string   `json:"email"`
	Phone       *string   `json:"phone"`
	Address     *string   `json:"address"`
	ImageURL    *string   `json:"imageUrl"`
	Notes       *string   `json:"notes"`
	Preferences *[]string `json:"preferences"`
	HospitalIDs *[]string `json:"hospitalIds"`
	Operations  *[]string `json:"operations"`
}

func (p DoctorPatch) apply(d *models.Doctor) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&d.Name, p.Name)
	set(&d.Specialty, p.Specialty)
	set(&d.Email, p.Email)
	set(&d.Phone, p.Phone)
	set(&d.Address, p.Address)
	set(&d.ImageURL, p.ImageURL)
	set(&d.Notes, p.Notes)
	if p.Preferences != nil {
		d.Preferences = nonNil(*p.Preferences)
	}
	if p.HospitalIDs != nil {
		d.HospitalIDs = nonNil(*p.HospitalIDs)
	}
	if p.Operations != nil {
		d.Operations = nonNil(*p.Operations)
	}
}

// HospitalInput is the body of the hospital admin forms.
type HospitalInput struct {
	Name                 string `json:"name"`
	City                 string `json:"city"`
	HasSurgicalWorkflows bool   `json:"hasSurgicalWorkflows"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
