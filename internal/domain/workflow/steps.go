package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/repcompanion/repcompanion/internal/domain/catalog"
	"github.com/repcompanion/repcompanion/internal/platform/blobstore"
	"github.com/repcompanion/repcompanion/internal/platform/kvstore"
	"github.com/repcompanion/repcompanion/pkg/models"
)

func stepAt(op *models.Operation, order int) (*models.OperationStep, error) {
	if order < 1 || order > len(op.Steps) {
		return nil, fmt.Errorf("step %d of operation %s: %w", order, op.ID, ErrNotFound)
	}
	return &op.Steps[order-1], nil
}

// editStep applies fn to one step of an operation.
func (s *Service) editStep(ctx context.Context, opID string, order int, fn func(*models.OperationStep) error) (*models.Operation, error) {
	return s.edit(ctx, opID, func(op *models.Operation) error {
		st, err := stepAt(op, order)
		if err != nil {
			return err
		}
		return fn(st)
	})
}

// AddStep appends a placeholder step.
func (s *Service) AddStep(ctx context.Context, opID string) (*models.Operation, error) {
	return s.edit(ctx, opID, func(op *models.Operation) error {
		op.Steps = append(op.Steps, models.OperationStep{
			Order:       len(op.Steps) + 1,
			Description: NewStepDescription,
			Duration:    NewStepDuration,
			Products:    []string{},
		})
		return nil
	})
}

func (s *Service) UpdateStep(ctx context.Context, opID string, order int, p StepPatch) (*models.Operation, error) {
	return s.editStep(ctx, opID, order, func(st *models.OperationStep) error {
		if p.Description != nil {
			st.Description = *p.Description
		}
		if p.Duration != nil {
			st.Duration = *p.Duration
		}
		if p.Notes != nil {
			st.Notes = *p.Notes
		}
		if p.DoctorPreferences != nil {
			st.DoctorPreferences = *p.DoctorPreferences
		}
		if p.Products != nil {
			st.Products = nonNil(*p.Products)
		}
		return nil
	})
}

// RemoveStep deletes a step and renumbers the rest. The last remaining step
// cannot be removed. Uploaded attachments of the step are released as in
// RemoveAttachment.
func (s *Service) RemoveStep(ctx context.Context, opID string, order int) (*models.Operation, error) {
	var removed models.OperationStep
	op, err := s.edit(ctx, opID, func(op *models.Operation) error {
		st, err := stepAt(op, order)
		if err != nil {
			return err
		}
		if len(op.Steps) == 1 {
			return invalid("an operation needs at least one step")
		}
		removed = *st
		steps := append(op.Steps[:order-1:order-1], op.Steps[order:]...)
		op.Steps = normalizeSteps(steps)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, att := range removed.Attachments {
		s.releaseBlob(ctx, op, att)
	}
	return op, nil
}

// -- Sets --

func (in *SetInput) validate() error {
	in.Description = strings.TrimSpace(in.Description)
	in.SetsNumber = strings.TrimSpace(in.SetsNumber)
	if in.Description == "" {
		return invalid("set description is required")
	}
	return nil
}

func (s *Service) AddSet(ctx context.Context, opID string, order int, in SetInput) (*models.Operation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.editStep(ctx, opID, order, func(st *models.OperationStep) error {
		st.Sets = append(st.Sets, models.StepSet{
			ID:          "set-" + uuid.New().String(),
			Description: in.Description,
			SetsNumber:  in.SetsNumber,
		})
		return nil
	})
}

func (s *Service) UpdateSet(ctx context.Context, opID string, order int, setID string, in SetInput) (*models.Operation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.editStep(ctx, opID, order, func(st *models.OperationStep) error {
		for i := range st.Sets {
			if st.Sets[i].ID == setID {
				st.Sets[i].Description = in.Description
				st.Sets[i].SetsNumber = in.SetsNumber
				return nil
			}
		}
		return fmt.Errorf("set %s: %w", setID, ErrNotFound)
	})
}

func (s *Service) RemoveSet(ctx context.Context, opID string, order int, setID string) (*models.Operation, error) {
	return s.editStep(ctx, opID, order, func(st *models.OperationStep) error {
		for i := range st.Sets {
			if st.Sets[i].ID == setID {
				st.Sets = append(st.Sets[:i], st.Sets[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("set %s: %w", setID, ErrNotFound)
	})
}

// -- Attachments --

// AddLink attaches an external link. Its type is inferred from the name.
func (s *Service) AddLink(ctx context.Context, opID string, order int, in LinkInput) (*models.Operation, error) {
	name := strings.TrimSpace(in.Name)
	url := strings.TrimSpace(in.URL)
	if name == "" || url == "" {
		return nil, invalid("link name and url are required")
	}
	return s.editStep(ctx, opID, order, func(st *models.OperationStep) error {
		st.Attachments = append(st.Attachments, models.StepAttachment{
			ID:   "att-" + uuid.New().String(),
			Name: name,
			Type: models.InferAttachmentType(name),
			URL:  url,
		})
		return nil
	})
}

// AddUpload attaches a blob previously stored through the attachments
// endpoint. The blob must belong to the caller's workspace.
func (s *Service) AddUpload(ctx context.Context, opID string, order int, in UploadInput) (*models.Operation, error) {
	if in.BlobID == "" {
		return nil, invalid("blobId is required")
	}
	meta, err := s.blobs.GetMetadata(ctx, in.BlobID)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, fmt.Errorf("attachment %s: %w", in.BlobID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !blobstore.Visible(meta, kvstore.WorkspaceFromContext(ctx)) {
		return nil, fmt.Errorf("attachment %s: %w", in.BlobID, ErrNotFound)
	}

	return s.editStep(ctx, opID, order, func(st *models.OperationStep) error {
		for _, att := range st.Attachments {
			if att.ID == meta.ID {
				return fmt.Errorf("attachment %s: %w", meta.ID, ErrConflict)
			}
		}
		st.Attachments = append(st.Attachments, models.StepAttachment{
			ID:   meta.ID,
			Name: meta.FileName,
			Type: models.InferAttachmentType(meta.FileName),
			URL:  blobstore.AttachmentURL(meta.ID),
		})
		return nil
	})
}

// RemoveAttachment detaches an attachment. The blob behind an upload is
// released once nothing refers to it.
func (s *Service) RemoveAttachment(ctx context.Context, opID string, order int, attachmentID string) (*models.Operation, error) {
	var removed models.StepAttachment
	op, err := s.editStep(ctx, opID, order, func(st *models.OperationStep) error {
		for i, att := range st.Attachments {
			if att.ID == attachmentID {
				removed = att
				st.Attachments = append(st.Attachments[:i], st.Attachments[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("attachment %s: %w", attachmentID, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	s.releaseBlob(ctx, op, removed)
	return op, nil
}

// uploaded reports whether att was created by AddUpload. Links get their own
// ids and never name a blob, whatever their url.
func uploaded(att models.StepAttachment) bool {
	return att.URL == blobstore.AttachmentURL(att.ID)
}

// releaseBlob deletes the blob behind an upload detached from op. Blobs on
// templates are kept because clones in any workspace copy the attachment.
// A blob is only deleted when it belongs to the caller's workspace and no
// template or workspace operation still refers to it. Failures are logged;
// the attachment is already gone from the step.
func (s *Service) releaseBlob(ctx context.Context, op *models.Operation, att models.StepAttachment) {
	if !op.IsCustom() || !uploaded(att) {
		return
	}
	log := s.logger.With().Str("blob_id", att.ID).Str("operation_id", op.ID).Logger()

	meta, err := s.blobs.GetMetadata(ctx, att.ID)
	if err != nil {
		if !errors.Is(err, blobstore.ErrBlobNotFound) {
			log.Warn().Err(err).Msg("failed to look up attachment blob")
		}
		return
	}
	if !blobstore.Visible(meta, kvstore.WorkspaceFromContext(ctx)) {
		return
	}
	inUse, err := s.blobInUse(ctx, att.ID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check attachment blob references")
		return
	}
	if inUse {
		log.Debug().Msg("attachment blob still referenced")
		return
	}
	if err := s.blobs.Delete(ctx, att.ID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		log.Warn().Err(err).Msg("failed to release attachment blob")
	}
}

// blobInUse reports whether any template or operation of the workspace still
// has an upload of blobID.
func (s *Service) blobInUse(ctx context.Context, blobID string) (bool, error) {
	templates, err := s.templates.List(ctx)
	if err != nil {
		return false, err
	}
	for _, ops := range [][]*models.Operation{templates, s.store.CustomOperations(ctx)} {
		for _, op := range ops {
			if hasUpload(op, blobID) {
				return true, nil
			}
		}
	}
	return false, nil
}

func hasUpload(op *models.Operation, blobID string) bool {
	for _, st := range op.Steps {
		for _, att := range st.Attachments {
			if att.ID == blobID && uploaded(att) {
				return true
			}
		}
	}
	return false
}

// -- Meta tags --

func effectiveTags(op *models.Operation) []string {
	if len(op.MetaTags) > 0 {
		return append([]string(nil), op.MetaTags...)
	}
	return []string{op.Category}
}

// MetaTags returns the operation's stored tags, falling back to its own tags
// and then to its category.
func (s *Service) MetaTags(ctx context.Context, opID string) ([]string, error) {
	op, err := s.GetOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	if tags, ok := s.store.MetaTags(ctx, opID); ok {
		return tags, nil
	}
	return effectiveTags(op), nil
}

// AddMetaTag appends a trimmed tag. Adding a tag that is already present is
// a no-op.
func (s *Service) AddMetaTag(ctx context.Context, opID, tag string) ([]string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, invalid("tag is required")
	}
	op, err := s.GetOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateMetaTags(ctx, opID, func() []string { return effectiveTags(op) }, func(tags []string) ([]string, error) {
		for _, t := range tags {
			if t == tag {
				return tags, nil
			}
		}
		return append(tags, tag), nil
	})
}

func (s *Service) RemoveMetaTag(ctx context.Context, opID, tag string) ([]string, error) {
	op, err := s.GetOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateMetaTags(ctx, opID, func() []string { return effectiveTags(op) }, func(tags []string) ([]string, error) {
		return removeString(tags, tag), nil
	})
}

// ResetMetaTags discards the stored tags so the operation's own tags, or its
// category, apply again.
func (s *Service) ResetMetaTags(ctx context.Context, opID string) ([]string, error) {
	op, err := s.GetOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	if err := s.store.ResetMetaTags(ctx, opID); err != nil {
		return nil, err
	}
	return effectiveTags(op), nil
}

func removeString(list []string, v string) []string {
	out := []string{}
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// -- Products --

func (s *Service) productIDs(ctx context.Context, op *models.Operation) []string {
	if ids, ok := s.store.Products(ctx, op.ID); ok {
		return ids
	}
	return nonNil(op.ProductsUsed)
}

// resolveProducts maps ids to catalogue products, skipping unknown ids.
func (s *Service) resolveProducts(ctx context.Context, ids []string) ([]*models.Product, error) {
	out := []*models.Product{}
	for _, id := range ids {
		p, err := s.catalog.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// OperationProducts returns the selected products of an operation and the
// catalogue products that can still be added, grouped by category.
func (s *Service) OperationProducts(ctx context.Context, opID string) (*ProductsView, error) {
	op, err := s.GetOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	return s.productsView(ctx, s.productIDs(ctx, op))
}

func (s *Service) productsView(ctx context.Context, ids []string) (*ProductsView, error) {
	selected, err := s.resolveProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	chosen := map[string]bool{}
	for _, id := range ids {
		chosen[id] = true
	}
	all, err := s.catalog.ListProducts(ctx, catalog.ProductFilter{})
	if err != nil {
		return nil, err
	}
	var available []*models.Product
	for _, p := range all {
		if !chosen[p.ID] {
			available = append(available, p)
		}
	}
	return &ProductsView{Selected: selected, Available: catalog.GroupByCategory(available)}, nil
}

// AddProduct selects a catalogue product for the operation. Selecting a
// product twice is a no-op.
func (s *Service) AddProduct(ctx context.Context, opID, productID string) (*ProductsView, error) {
	op, err := s.GetOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, invalid("unknown product %q", productID)
		}
		return nil, err
	}
	ids, err := s.store.UpdateProducts(ctx, opID, func() []string { return nonNil(op.ProductsUsed) }, func(ids []string) ([]string, error) {
		for _, id := range ids {
			if id == productID {
				return ids, nil
			}
		}
		return append(ids, productID), nil
	})
	if err != nil {
		return nil, err
	}
	return s.productsView(ctx, ids)
}

func (s *Service) RemoveProduct(ctx context.Context, opID, productID string) (*ProductsView, error) {
	op, err := s.GetOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	ids, err := s.store.UpdateProducts(ctx, opID, func() []string { return nonNil(op.ProductsUsed) }, func(ids []string) ([]string, error) {
		return removeString(ids, productID), nil
	})
	if err != nil {
		return nil, err
	}
	return s.productsView(ctx, ids)
}

// ResetProducts discards the stored product selection so the operation's
// productsUsed apply again.
func (s *Service) ResetProducts(ctx context.Context, opID string) (*ProductsView, error) {
	op, err := s.GetOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	if err := s.store.ResetProducts(ctx, opID); err != nil {
		return nil, err
	}
	return s.productsView(ctx, nonNil(op.ProductsUsed))
}
