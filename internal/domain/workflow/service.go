package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/repcompanion/repcompanion/internal/domain/directory"
	"github.com/repcompanion/repcompanion/internal/platform/blobstore"
	"github.com/repcompanion/repcompanion/pkg/models"
)

type Service struct {
	templates TemplateRepository
	store     *Store
	dir       Directory
	catalog   Catalog
	blobs     blobstore.BlobStore
	logger    zerolog.Logger
	now       func() time.Time

	// serialises template read-modify-write cycles
	templateMu sync.Mutex
}

func NewService(templates TemplateRepository, store *Store, dir Directory, cat Catalog, blobs blobstore.BlobStore, logger zerolog.Logger) *Service {
	return &Service{
		templates: templates,
		store:     store,
		dir:       dir,
		catalog:   cat,
		blobs:     blobs,
		logger:    logger,
		now:       time.Now,
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func (s *Service) doctor(ctx context.Context, id string) (*models.Doctor, error) {
	d, err := s.dir.GetDoctor(ctx, id)
	if errors.Is(err, directory.ErrNotFound) {
		return nil, fmt.Errorf("doctor %s: %w", id, ErrNotFound)
	}
	return d, err
}

func (s *Service) hospital(ctx context.Context, id string) (*models.Hospital, error) {
	h, err := s.dir.GetHospital(ctx, id)
	if errors.Is(err, directory.ErrNotFound) {
		return nil, fmt.Errorf("hospital %s: %w", id, ErrNotFound)
	}
	return h, err
}

// normalizeSteps renumbers steps 1..n and replaces nil product lists.
func normalizeSteps(steps []models.OperationStep) []models.OperationStep {
	out := make([]models.OperationStep, len(steps))
	for i, st := range steps {
		st = st.Clone()
		st.Order = i + 1
		if st.Products == nil {
			st.Products = []string{}
		}
		out[i] = st
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}

// -- Templates --

func (s *Service) ListTemplates(ctx context.Context, f TemplateFilter) ([]*models.Operation, error) {
	all, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(f.Query)
	out := []*models.Operation{}
	for _, op := range all {
		if q != "" &&
			!strings.Contains(strings.ToLower(op.Name), q) &&
			!strings.Contains(strings.ToLower(op.Description), q) {
			continue
		}
		if f.Category != "" && op.Category != f.Category {
			continue
		}
		out = append(out, op)
	}
	return out, nil
}

// TemplateCategories counts templates per category, in display order.
func (s *Service) TemplateCategories(ctx context.Context) ([]CategoryCount, error) {
	all, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryCount, len(models.Categories))
	for i, c := range models.Categories {
		out[i].Category = c
		for _, op := range all {
			if op.Category == c {
				out[i].Count++
			}
		}
	}
	return out, nil
}

func (s *Service) GetTemplate(ctx context.Context, id string) (*models.Operation, error) {
	return s.templates.GetByID(ctx, id)
}

func (in *TemplateInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" || in.Category == "" || in.Description == "" {
		return invalid("please fill in all required fields")
	}
	if !models.ValidCategory(in.Category) {
		return invalid("invalid category %q", in.Category)
	}
	return nil
}

func (in TemplateInput) applyTo(op *models.Operation) {
	op.Name = in.Name
	op.Category = in.Category
	op.Description = in.Description
	op.EstimatedDuration = in.EstimatedDuration
	op.Steps = normalizeSteps(in.Steps)
	op.ProductsUsed = nonNil(in.ProductsUsed)
	op.MetaTags = append([]string(nil), in.MetaTags...)
}

// CreateTemplate adds a workflow template. A template submitted without steps
// starts with one empty step.
func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (*models.Operation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if len(in.Steps) == 0 {
		in.Steps = []models.OperationStep{{Duration: DefaultTemplateDuration}}
	}
	op := &models.Operation{}
	in.applyTo(op)

	s.templateMu.Lock()
	defer s.templateMu.Unlock()
	id, err := s.freeID(ctx, func(ms int64) string { return fmt.Sprintf("op-%d", ms) })
	if err != nil {
		return nil, err
	}
	op.ID = id
	if err := s.templates.Create(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// UpdateTemplate replaces every editable field of the template.
func (s *Service) UpdateTemplate(ctx context.Context, id string, in TemplateInput) (*models.Operation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	s.templateMu.Lock()
	defer s.templateMu.Unlock()
	op, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(op)
	if err := s.templates.Update(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	return s.templates.Delete(ctx, id)
}

// freeID returns the first id built from the current unix millisecond, or a
// later one, that no template or persisted operation uses.
func (s *Service) freeID(ctx context.Context, build func(ms int64) string) (string, error) {
	for ms := s.now().UnixMilli(); ; ms++ {
		id := build(ms)
		_, err := s.GetOperation(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// -- Operations --

// GetOperation looks an id up among templates first, then among the
// workspace's persisted operations.
func (s *Service) GetOperation(ctx context.Context, id string) (*models.Operation, error) {
	op, err := s.templates.GetByID(ctx, id)
	if err == nil {
		return op, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if op, ok := s.store.CustomOperation(ctx, id); ok {
		return op, nil
	}
	return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
}

// DoctorProcedures returns the doctor's procedures: statically assigned
// operations, then associated operations, then persisted operations owned by
// the doctor. Ids are de-duplicated and unresolvable ids are skipped.
func (s *Service) DoctorProcedures(ctx context.Context, doctorID string) ([]*models.Operation, error) {
	doc, err := s.doctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	custom := s.store.CustomOperations(ctx)
	byID := make(map[string]*models.Operation, len(custom))
	for _, op := range custom {
		byID[op.ID] = op
	}

	seen := map[string]bool{}
	out := []*models.Operation{}
	add := func(id string) error {
		if seen[id] {
			return nil
		}
		op, err := s.templates.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			op = byID[id]
		} else if err != nil {
			return err
		}
		if op == nil {
			return nil
		}
		seen[id] = true
		out = append(out, op)
		return nil
	}

	for _, id := range doc.Operations {
		if err := add(id); err != nil {
			return nil, err
		}
	}
	for _, id := range s.store.OperationsForDoctor(ctx, doctorID) {
		if err := add(id); err != nil {
			return nil, err
		}
	}
	for _, op := range custom {
		if op.OwnerDoctorID == doctorID {
			if err := add(op.ID); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// AvailableTemplates returns, grouped by category, the templates that are
// neither in the doctor's procedure list nor already cloned for the doctor.
func (s *Service) AvailableTemplates(ctx context.Context, doctorID string) ([]CategoryGroup, error) {
	procedures, err := s.DoctorProcedures(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	taken := map[string]bool{}
	for _, op := range procedures {
		taken[op.ID] = true
		if op.SourceTemplateID != "" {
			taken[op.SourceTemplateID] = true
		}
	}

	templates, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	var available []*models.Operation
	for _, t := range templates {
		if !taken[t.ID] {
			available = append(available, t)
		}
	}
	return groupByCategory(available), nil
}

// groupByCategory groups operations in category display order, omitting
// empty categories.
func groupByCategory(ops []*models.Operation) []CategoryGroup {
	groups := []CategoryGroup{}
	for _, c := range models.Categories {
		var members []*models.Operation
		for _, op := range ops {
			if op.Category == c {
				members = append(members, op)
			}
		}
		if len(members) > 0 {
			groups = append(groups, CategoryGroup{Category: c, Operations: members})
		}
	}
	return groups
}

// CloneID is the id given to a template copied for a doctor.
func CloneID(templateID, doctorID string) string {
	return templateID + "-" + doctorID
}

// CloneTemplate copies a template for the doctor, persisting the copy and the
// association together. Cloning the same template twice for a doctor fails
// with ErrConflict.
func (s *Service) CloneTemplate(ctx context.Context, doctorID, templateID string) (*models.Operation, error) {
	if _, err := s.doctor(ctx, doctorID); err != nil {
		return nil, err
	}
	tpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	id := CloneID(templateID, doctorID)
	if _, err := s.templates.GetByID(ctx, id); err == nil {
		return nil, fmt.Errorf("operation %s: %w", id, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	clone := tpl.Clone()
	clone.ID = id
	clone.SourceTemplateID = templateID
	clone.OwnerDoctorID = doctorID
	clone.Steps = normalizeSteps(clone.Steps)
	if err := s.store.CreateCustomForDoctor(ctx, clone, doctorID); err != nil {
		return nil, err
	}
	s.logger.Info().Str("operation_id", id).Str("doctor_id", doctorID).Msg("template cloned")
	return clone, nil
}

func (in *ProcedureInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Category == "" {
		in.Category = models.CategoryJoint
	}
	switch {
	case in.Name == "":
		return invalid("name is required")
	case strings.TrimSpace(in.EstimatedDuration) == "":
		return invalid("estimated duration is required")
	case !models.ValidCategory(in.Category):
		return invalid("invalid category %q", in.Category)
	case len(in.Steps) == 0:
		return invalid("at least one step is required")
	}
	for i, st := range in.Steps {
		if strings.TrimSpace(st.Description) == "" {
			return invalid("step %d needs a description", i+1)
		}
	}
	return nil
}

// NewProcedure creates a doctor-specific procedure from scratch. Step product
// lists start empty.
func (s *Service) NewProcedure(ctx context.Context, doctorID string, in ProcedureInput) (*models.Operation, error) {
	if _, err := s.doctor(ctx, doctorID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	op := &models.Operation{
		Name:              in.Name,
		Category:          in.Category,
		Description:       in.Description,
		EstimatedDuration: in.EstimatedDuration,
		Steps:             normalizeSteps(in.Steps),
		ProductsUsed:      []string{},
		OwnerDoctorID:     doctorID,
	}
	for i := range op.Steps {
		op.Steps[i].Products = []string{}
	}

	for ms := s.now().UnixMilli(); ; ms++ {
		op.ID = fmt.Sprintf("op-%d-%s", ms, doctorID)
		if _, err := s.templates.GetByID(ctx, op.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		err := s.store.CreateCustomForDoctor(ctx, op, doctorID)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return op, nil
	}
}

// edit applies fn to a template or a persisted operation and saves it.
func (s *Service) edit(ctx context.Context, id string, fn func(*models.Operation) error) (*models.Operation, error) {
	s.templateMu.Lock()
	tpl, err := s.templates.GetByID(ctx, id)
	if err == nil {
		defer s.templateMu.Unlock()
		if err := fn(tpl); err != nil {
			return nil, err
		}
		if err := s.templates.Update(ctx, tpl); err != nil {
			return nil, err
		}
		return tpl, nil
	}
	s.templateMu.Unlock()
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.store.UpdateCustom(ctx, id, fn)
}
