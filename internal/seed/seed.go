// Package seed loads the static reference data set (hospitals, doctors,
// workflow templates, products and historical call notes) and provides
// linear lookups over it. The data set is small and fully loaded, so every
// helper is a plain scan.
package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/repcompanion/repcompanion/pkg/models"
)

//go:embed data/seed.yaml
var embedded []byte

// Data is the full static data set.
type Data struct {
	Hospitals      []*models.Hospital  `yaml:"hospitals"`
	Doctors        []*models.Doctor    `yaml:"doctors"`
	Operations     []*models.Operation `yaml:"operations"`
	Products       []*models.Product   `yaml:"products"`
	CallNotes      []*models.CallNote  `yaml:"callNotes"`
	RecentSearches []string            `yaml:"recentSearches"`
}

// Load parses the data set compiled into the binary.
func Load() (*Data, error) {
	return Parse(embedded)
}

// LoadFile parses a data set from a YAML file on disk.
func LoadFile(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML data set. Unknown fields are rejected so typos in a
// hand-edited seed file surface at start-up.
func Parse(raw []byte) (*Data, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var d Data
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode seed data: %w", err)
	}
	d.normalize()
	return &d, nil
}

// normalize replaces nil slices with empty ones so JSON output matches the
// shapes clients expect ([] rather than null).
func (d *Data) normalize() {
	for _, h := range d.Hospitals {
		if h.Doctors == nil {
			h.Doctors = []string{}
		}
	}
	for _, doc := range d.Doctors {
		if doc.HospitalIDs == nil {
			doc.HospitalIDs = []string{}
		}
		if doc.Operations == nil {
			doc.Operations = []string{}
		}
		if doc.Preferences == nil {
			doc.Preferences = []string{}
		}
	}
	for _, op := range d.Operations {
		if op.ProductsUsed == nil {
			op.ProductsUsed = []string{}
		}
		if op.Steps == nil {
			op.Steps = []models.OperationStep{}
		}
		for i := range op.Steps {
			if op.Steps[i].Products == nil {
				op.Steps[i].Products = []string{}
			}
		}
	}
	for _, p := range d.Products {
		if p.CompatibleWith == nil {
			p.CompatibleWith = []string{}
		}
		if p.Specifications == nil {
			p.Specifications = map[string]string{}
		}
	}
}

// HospitalByID returns the hospital with the given id.
func (d *Data) HospitalByID(id string) (*models.Hospital, bool) {
	for _, h := range d.Hospitals {
		if h.ID == id {
			return h, true
		}
	}
	return nil, false
}

// DoctorByID returns the doctor with the given id.
func (d *Data) DoctorByID(id string) (*models.Doctor, bool) {
	for _, doc := range d.Doctors {
		if doc.ID == id {
			return doc, true
		}
	}
	return nil, false
}

// OperationByID returns the workflow template with the given id.
func (d *Data) OperationByID(id string) (*models.Operation, bool) {
	for _, op := range d.Operations {
		if op.ID == id {
			return op, true
		}
	}
	return nil, false
}

// ProductByID returns the product with the given id.
func (d *Data) ProductByID(id string) (*models.Product, bool) {
	for _, p := range d.Products {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// DoctorsByHospital returns exactly the doctors whose hospitalIds contain
// hospitalID, in seed order.
func (d *Data) DoctorsByHospital(hospitalID string) []*models.Doctor {
	var out []*models.Doctor
	for _, doc := range d.Doctors {
		if doc.HasHospital(hospitalID) {
			out = append(out, doc)
		}
	}
	return out
}

// OperationsByDoctor resolves the doctor's statically assigned operations.
// Unknown operation ids are skipped.
func (d *Data) OperationsByDoctor(doctorID string) []*models.Operation {
	doc, ok := d.DoctorByID(doctorID)
	if !ok {
		return nil
	}
	var out []*models.Operation
	for _, id := range doc.Operations {
		if op, ok := d.OperationByID(id); ok {
			out = append(out, op)
		}
	}
	return out
}

// SurgicalHospitals returns hospitals shown in the workflow browser.
func (d *Data) SurgicalHospitals() []*models.Hospital {
	var out []*models.Hospital
	for _, h := range d.Hospitals {
		if h.HasSurgicalWorkflows {
			out = append(out, h)
		}
	}
	return out
}
