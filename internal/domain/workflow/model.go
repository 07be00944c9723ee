// Package workflow manages surgical workflow templates, doctor-specific
// procedures derived from them, and the per-operation editors (steps, sets,
// attachments, meta tags and products).
//
// Templates live in process memory. Doctor-specific procedures, the
// doctor-to-operation associations and per-operation overrides are persisted
// per workspace through a kvstore.Store.
package workflow

import (
	"errors"

	"github.com/repcompanion/repcompanion/internal/domain/catalog"
	"github.com/repcompanion/repcompanion/pkg/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("already exists")
)

// Persisted keys.
const (
	KeyCustomOperations = "depuy-custom-operations"
	KeyDoctorOperations = "depuy-doctor-operations"
	keyMetaTagsPrefix   = "operation-meta-tags-"
	keyProductsPrefix   = "operation-products-"
)

func metaTagsKey(operationID string) string { return keyMetaTagsPrefix + operationID }
func productsKey(operationID string) string { return keyProductsPrefix + operationID }

// Step defaults.
const (
	NewStepDescription      = "New step"
	NewStepDuration         = "5 min"
	DefaultTemplateDuration = "10 min"
)

// TemplateFilter selects templates in the admin list.
type TemplateFilter struct {
	Query    string
	Category string
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CategoryGroup holds the operations of one category.
type CategoryGroup struct {
	Category   string              `json:"category"`
	Operations []*models.Operation `json:"operations"`
}

// TemplateInput is the body of the admin template editor.
type TemplateInput struct {
	Name              string                 `json:"name"`
	Category          string                 `json:"category"`
	Description       string                 `json:"description"`
	EstimatedDuration string                 `json:"estimatedDuration"`
	Steps             []models.OperationStep `json:"steps"`
	ProductsUsed      []string               `json:"productsUsed"`
	MetaTags          []string               `json:"metaTags"`
}

// ProcedureInput is the body of the "New Procedure" form.
type ProcedureInput struct {
	Name              string                 `json:"name"`
	Category          string                 `json:"category"`
	Description       string                 `json:"description"`
	EstimatedDuration string                 `json:"estimatedDuration"`
	Steps             []models.OperationStep `json:"steps"`
}

// StepPatch edits the text fields and product list of a step. Nil fields are
// left alone.
type StepPatch struct {
	Description       *string   `json:"description"`
	Duration          *string   `json:"duration"`
	Notes             *string   `json:"notes"`
	DoctorPreferences *string   `json:"doctorPreferences"`
	Products          *[]string `json:"products"`
}

type SetInput struct {
	Description string `json:"description"`
	SetsNumber  string `json:"setsNumber"`
}

// LinkInput attaches an external link to a step.
type LinkInput struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// UploadInput attaches a previously uploaded blob to a step.
type UploadInput struct {
	BlobID string `json:"blobId"`
}

// HospitalView is a hospital in the workflow browser with its surgeons.
type HospitalView struct {
	Hospital *models.Hospital `json:"hospital"`
	Doctors  []*models.Doctor `json:"doctors"`
}

// DoctorView lists a doctor's procedures and the templates that can still be
// added.
type DoctorView struct {
	Hospital           *models.Hospital    `json:"hospital"`
	Doctor             *models.Doctor      `json:"doctor"`
	Procedures         []*models.Operation `json:"procedures"`
	AvailableTemplates []CategoryGroup     `json:"availableTemplates"`
}

// OperationView is the operation detail page.
type OperationView struct {
	Hospital     *models.Hospital  `json:"hospital"`
	Doctor       *models.Doctor    `json:"doctor"`
	Operation    *models.Operation `json:"operation"`
	MetaTags     []string          `json:"metaTags"`
	ProductsUsed []*models.Product `json:"productsUsed"`
	Steps        []StepView        `json:"steps"`
}

// StepView is a step with its product ids resolved.
type StepView struct {
	models.OperationStep
	ResolvedProducts []*models.Product `json:"resolvedProducts"`
}

// ProductsView is the operation products editor state.
type ProductsView struct {
	Selected  []*models.Product       `json:"selected"`
	Available []catalog.CategoryGroup `json:"available"`
}
