// Package overview assembles the read-only aggregate pages: the home
// dashboard, the doctor profile and the product detail page.
package overview

import (
	"errors"

	"github.com/repcompanion/repcompanion/pkg/models"
)

var ErrNotFound = errors.New("not found")

const (
	dashboardSurgeons = 3
	dashboardProducts = 2
	profileNotes      = 3
	relatedDoctors    = 3
)

type Dashboard struct {
	HospitalCount  int               `json:"hospitalCount"`
	SurgeonCount   int               `json:"surgeonCount"`
	ProductCount   int               `json:"productCount"`
	RecentSurgeons []*models.Doctor  `json:"recentSurgeons"`
	RecentProducts []*models.Product `json:"recentProducts"`
}

type DoctorProfile struct {
	Doctor      *models.Doctor      `json:"doctor"`
	Hospitals   []*models.Hospital  `json:"hospitals"`
	Operations  []*models.Operation `json:"operations"`
	RecentNotes []*models.CallNote  `json:"recentNotes"`
	NoteCount   int                 `json:"noteCount"`
}

type ProductDetail struct {
	Product        *models.Product   `json:"product"`
	Compatible     []*models.Product `json:"compatible"`
	RelatedDoctors []*models.Doctor  `json:"relatedDoctors"`
}
