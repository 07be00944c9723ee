package seed

import (
	"testing"
)

func mustLoad(t *testing.T) *Data {
	t.Helper()
	d, err := Load()
	if err != nil {
		t.Fatalf("load embedded seed: %v", err)
	}
	return d
}

func TestLoad_Embedded(t *testing.T) {
	d := mustLoad(t)
	if len(d.Hospitals) == 0 || len(d.Doctors) == 0 || len(d.Operations) == 0 || len(d.Products) == 0 {
		t.Fatalf("expected non-empty collections, got %d hospitals, %d doctors, %d operations, %d products",
			len(d.Hospitals), len(d.Doctors), len(d.Operations), len(d.Products))
	}
	if len(d.CallNotes) != 20 {
		t.Errorf("expected 20 seed call notes, got %d", len(d.CallNotes))
	}
}

func TestLoad_EmbeddedIsConsistent(t *testing.T) {
	d := mustLoad(t)
	if problems := d.Validate(); len(problems) > 0 {
		for _, p := range problems {
			t.Errorf("seed problem: %s", p)
		}
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("hospitals:\n  - id: h1\n    nmae: typo\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParse_NormalizesNilSlices(t *testing.T) {
	d, err := Parse([]byte("doctors:\n  - id: dx\n    name: Dr. X\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := d.Doctors[0]
	if doc.HospitalIDs == nil || doc.Operations == nil || doc.Preferences == nil {
		t.Error("expected nil slices to be replaced with empty slices")
	}
}

func TestDoctorsByHospital_ExactMembership(t *testing.T) {
	d := mustLoad(t)
	for _, h := range d.Hospitals {
		got := d.DoctorsByHospital(h.ID)
		want := 0
		for _, doc := range d.Doctors {
			if doc.HasHospital(h.ID) {
				want++
			}
		}
		if len(got) != want {
			t.Errorf("hospital %s: expected %d doctors, got %d", h.ID, want, len(got))
		}
		for _, doc := range got {
			if !doc.HasHospital(h.ID) {
				t.Errorf("hospital %s: doctor %s does not list it", h.ID, doc.ID)
			}
		}
	}
}

func TestDoctorsByHospital_Scenario(t *testing.T) {
	d := mustLoad(t)
	found := false
	for _, doc := range d.DoctorsByHospital("h1") {
		if doc.ID == "d1" {
			found = true
		}
	}
	if !found {
		t.Error("expected d1 among doctors of h1")
	}
}

func TestLookups_NotFound(t *testing.T) {
	d := mustLoad(t)
	if _, ok := d.HospitalByID("nope"); ok {
		t.Error("expected hospital not found")
	}
	if _, ok := d.DoctorByID("nope"); ok {
		t.Error("expected doctor not found")
	}
	if _, ok := d.OperationByID("nope"); ok {
		t.Error("expected operation not found")
	}
	if _, ok := d.ProductByID("nope"); ok {
		t.Error("expected product not found")
	}
	if ops := d.OperationsByDoctor("nope"); ops != nil {
		t.Errorf("expected nil operations for unknown doctor, got %d", len(ops))
	}
}

func TestOperationsByDoctor_SkipsUnknown(t *testing.T) {
	d, err := Parse([]byte(`
operations:
  - id: op-a
    name: A
    category: joint
doctors:
  - id: d1
    name: Dr. One
    operations: [op-a, op-missing]
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ops := d.OperationsByDoctor("d1")
	if len(ops) != 1 || ops[0].ID != "op-a" {
		t.Errorf("expected only op-a, got %v", ops)
	}
}

func TestSurgicalHospitals(t *testing.T) {
	d := mustLoad(t)
	for _, h := range d.SurgicalHospitals() {
		if !h.HasSurgicalWorkflows {
			t.Errorf("hospital %s returned without surgical workflows", h.ID)
		}
	}
}

func TestValidate_ReportsDanglingReferences(t *testing.T) {
	d, err := Parse([]byte(`
doctors:
  - id: d1
    name: Dr. One
    hospitalIds: [h-missing]
callNotes:
  - id: cn1
    doctorId: d-missing
    date: "2025-01-01"
    notes: hi
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	problems := d.Validate()
	if len(problems) != 2 {
		t.Fatalf("expected 2 problems, got %d: %v", len(problems), problems)
	}
}
