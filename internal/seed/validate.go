package seed

import (
	"fmt"

	"github.com/repcompanion/repcompanion/pkg/models"
)

// Problem describes one dangling or malformed reference in the data set.
type Problem struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Detail string `json:"detail"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s %s: %s", p.Entity, p.ID, p.Detail)
}

// Validate reports references that do not resolve and duplicate ids. Nothing
// at runtime depends on referential integrity; this exists so a hand-edited
// seed file can be checked before it is deployed.
func (d *Data) Validate() []Problem {
	var problems []Problem
	add := func(entity, id, format string, args ...interface{}) {
		problems = append(problems, Problem{Entity: entity, ID: id, Detail: fmt.Sprintf(format, args...)})
	}

	seen := map[string]bool{}
	dup := func(entity, id string) {
		key := entity + "/" + id
		if seen[key] {
			add(entity, id, "duplicate id")
		}
		seen[key] = true
	}

	for _, h := range d.Hospitals {
		dup("hospital", h.ID)
		for _, docID := range h.Doctors {
			if _, ok := d.DoctorByID(docID); !ok {
				add("hospital", h.ID, "unknown doctor %q", docID)
			}
		}
	}
	for _, doc := range d.Doctors {
		dup("doctor", doc.ID)
		if len(doc.HospitalIDs) == 0 {
			add("doctor", doc.ID, "no hospitals assigned")
		}
		for _, hID := range doc.HospitalIDs {
			if _, ok := d.HospitalByID(hID); !ok {
				add("doctor", doc.ID, "unknown hospital %q", hID)
			}
		}
		for _, opID := range doc.Operations {
			if _, ok := d.OperationByID(opID); !ok {
				add("doctor", doc.ID, "unknown operation %q", opID)
			}
		}
	}
	for _, op := range d.Operations {
		dup("operation", op.ID)
		if !models.ValidCategory(op.Category) {
			add("operation", op.ID, "invalid category %q", op.Category)
		}
		for _, pID := range op.ProductsUsed {
			if _, ok := d.ProductByID(pID); !ok {
				add("operation", op.ID, "unknown product %q", pID)
			}
		}
		for i, step := range op.Steps {
			if step.Order != i+1 {
				add("operation", op.ID, "step %d has order %d", i+1, step.Order)
			}
			for _, pID := range step.Products {
				if _, ok := d.ProductByID(pID); !ok {
					add("operation", op.ID, "step %d references unknown product %q", step.Order, pID)
				}
			}
		}
	}
	for _, p := range d.Products {
		dup("product", p.ID)
	}
	for _, n := range d.CallNotes {
		dup("call_note", n.ID)
		if _, ok := d.DoctorByID(n.DoctorID); !ok {
			add("call_note", n.ID, "unknown doctor %q", n.DoctorID)
		}
	}
	return problems
}
