package models

import "strings"

// Common value sets and record types shared across the application.

// Operation categories.
const (
	CategoryJoint  = "joint"
	CategoryTrauma = "trauma"
	CategorySpine  = "spine"
)

// Categories lists the valid operation categories in display order.
var Categories = []string{CategoryJoint, CategoryTrauma, CategorySpine}

// ValidCategory reports whether c is a known operation category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryJoint, CategoryTrauma, CategorySpine:
		return true
	}
	return false
}

// Attachment types, inferred from file extensions.
const (
	AttachmentImage    = "image"
	AttachmentPDF      = "pdf"
	AttachmentWord     = "word"
	AttachmentDocument = "document"
)

// Hospital is a facility a rep covers.
type Hospital struct {
	ID                   string   `json:"id" yaml:"id"`
	Name                 string   `json:"name" yaml:"name"`
	City                 string   `json:"city" yaml:"city"`
	Code                 string   `json:"code" yaml:"code"`
	Address              string   `json:"address" yaml:"address"`
	Phone                string   `json:"phone" yaml:"phone"`
	Website              string   `json:"website" yaml:"website"`
	HealthAuthority      string   `json:"healthAuthority" yaml:"healthAuthority"`
	HasSurgicalWorkflows bool     `json:"hasSurgicalWorkflows" yaml:"hasSurgicalWorkflows"`
	Doctors              []string `json:"doctors" yaml:"doctors"`
}

// Clone returns a copy that shares no slices with h.
func (h *Hospital) Clone() *Hospital {
	c := *h
	c.Doctors = cloneStrings(h.Doctors)
	return &c
}

// Doctor is a surgeon the rep calls on.
type Doctor struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Specialty   string   `json:"specialty" yaml:"specialty"`
	Email       string   `json:"email" yaml:"email"`
	Phone       string   `json:"phone" yaml:"phone"`
	Address     string   `json:"address" yaml:"address"`
	ImageURL    string   `json:"imageUrl" yaml:"imageUrl"`
	HospitalIDs []string `json:"hospitalIds" yaml:"hospitalIds"`
	Operations  []string `json:"operations" yaml:"operations"`
	Preferences []string `json:"preferences" yaml:"preferences"`
	Notes       string   `json:"notes" yaml:"notes"`
	LastVisit   string   `json:"lastVisit" yaml:"lastVisit"`
}

// Clone returns a copy that shares no slices with d.
func (d *Doctor) Clone() *Doctor {
	c := *d
	c.HospitalIDs = cloneStrings(d.HospitalIDs)
	c.Operations = cloneStrings(d.Operations)
	c.Preferences = cloneStrings(d.Preferences)
	return &c
}

// HasHospital reports whether the doctor practices at hospitalID.
func (d *Doctor) HasHospital(hospitalID string) bool {
	for _, id := range d.HospitalIDs {
		if id == hospitalID {
			return true
		}
	}
	return false
}

// StepSet is an instrument set used during a step.
type StepSet struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	SetsNumber  string `json:"setsNumber" yaml:"setsNumber"`
}

// StepAttachment is a file or link attached to a step.
type StepAttachment struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	URL  string `json:"url" yaml:"url"`
}

// OperationStep is one ordered stage of a procedure.
type OperationStep struct {
	Order             int              `json:"order" yaml:"order"`
	Description       string           `json:"description" yaml:"description"`
	Duration          string           `json:"duration" yaml:"duration"`
	Notes             string           `json:"notes" yaml:"notes"`
	DoctorPreferences string           `json:"doctorPreferences" yaml:"doctorPreferences"`
	Products          []string         `json:"products" yaml:"products"`
	Sets              []StepSet        `json:"sets,omitempty" yaml:"sets"`
	Attachments       []StepAttachment `json:"attachments,omitempty" yaml:"attachments"`
}

// Clone returns a copy of the step with its own slices.
func (s OperationStep) Clone() OperationStep {
	c := s
	c.Products = cloneStrings(s.Products)
	if s.Sets != nil {
		c.Sets = append([]StepSet(nil), s.Sets...)
	}
	if s.Attachments != nil {
		c.Attachments = append([]StepAttachment(nil), s.Attachments...)
	}
	return c
}

// Operation is a workflow template or a doctor-specific copy of one.
// SourceTemplateID and OwnerDoctorID are set on doctor-specific operations.
type Operation struct {
	ID                string          `json:"id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	Category          string          `json:"category" yaml:"category"`
	Description       string          `json:"description" yaml:"description"`
	EstimatedDuration string          `json:"estimatedDuration" yaml:"estimatedDuration"`
	Steps             []OperationStep `json:"steps" yaml:"steps"`
	ProductsUsed      []string        `json:"productsUsed" yaml:"productsUsed"`
	MetaTags          []string        `json:"metaTags,omitempty" yaml:"metaTags"`
	SourceTemplateID  string          `json:"sourceTemplateId,omitempty" yaml:"sourceTemplateId"`
	OwnerDoctorID     string          `json:"ownerDoctorId,omitempty" yaml:"ownerDoctorId"`
}

// Clone deep-copies the operation, including every step.
func (o *Operation) Clone() *Operation {
	c := *o
	if o.Steps != nil {
		c.Steps = make([]OperationStep, len(o.Steps))
		for i, s := range o.Steps {
			c.Steps[i] = s.Clone()
		}
	}
	c.ProductsUsed = cloneStrings(o.ProductsUsed)
	c.MetaTags = cloneStrings(o.MetaTags)
	return &c
}

// IsCustom reports whether the operation belongs to a specific doctor.
func (o *Operation) IsCustom() bool {
	return o.OwnerDoctorID != ""
}

// Product is a catalogue item.
type Product struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	SKU            string            `json:"sku" yaml:"sku"`
	Category       string            `json:"category" yaml:"category"`
	Description    string            `json:"description" yaml:"description"`
	ImageURL       string            `json:"imageUrl" yaml:"imageUrl"`
	Specifications map[string]string `json:"specifications" yaml:"specifications"`
	CompatibleWith []string          `json:"compatibleWith" yaml:"compatibleWith"`
}

// CallNote records one interaction between a rep and a doctor.
type CallNote struct {
	ID        string `json:"id" yaml:"id"`
	DoctorID  string `json:"doctorId" yaml:"doctorId"`
	Date      string `json:"date" yaml:"date"`
	Notes     string `json:"notes" yaml:"notes"`
	CreatedBy string `json:"createdBy" yaml:"createdBy"`
}

// DateLayout is the calendar date format used by LastVisit and CallNote.Date.
const DateLayout = "2006-01-02"

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// InferAttachmentType maps a file or link name to an attachment type by its
// extension. Unknown extensions are treated as generic documents.
func InferAttachmentType(name string) string {
	ext := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = strings.ToLower(name[i+1:])
	}
	switch ext {
	case "jpg", "jpeg", "png", "gif", "webp", "svg":
		return AttachmentImage
	case "pdf":
		return AttachmentPDF
	case "doc", "docx":
		return AttachmentWord
	}
	return AttachmentDocument
}
