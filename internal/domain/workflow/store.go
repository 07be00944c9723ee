package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/repcompanion/repcompanion/internal/platform/kvstore"
	"github.com/repcompanion/repcompanion/pkg/models"
)

// Store persists doctor-specific operations, doctor-to-operation associations
// and per-operation meta tag and product overrides. The kv backend is
// expected to be workspace scoped. Read-modify-write cycles are serialised.
type Store struct {
	kv     kvstore.Store
	logger zerolog.Logger
	mu     sync.Mutex
}

func NewStore(kv kvstore.Store, logger zerolog.Logger) *Store {
	return &Store{kv: kv, logger: logger.With().Str("component", "workflow_store").Logger()}
}

func validCustomOperations(ops []*models.Operation) error {
	for i, op := range ops {
		switch {
		case op == nil:
			return fmt.Errorf("entry %d is null", i)
		case op.ID == "":
			return fmt.Errorf("entry %d has no id", i)
		case op.Name == "":
			return fmt.Errorf("operation %s has no name", op.ID)
		case !models.ValidCategory(op.Category):
			return fmt.Errorf("operation %s has invalid category %q", op.ID, op.Category)
		}
	}
	return nil
}

// CustomOperations returns every persisted operation of the workspace. A
// missing or unreadable entry yields an empty list.
func (s *Store) CustomOperations(ctx context.Context) []*models.Operation {
	ops := kvstore.LoadJSON(ctx, s.kv, s.logger, KeyCustomOperations, validCustomOperations)
	if ops == nil {
		return []*models.Operation{}
	}
	return ops
}

// CustomOperation returns the persisted operation with the given id.
func (s *Store) CustomOperation(ctx context.Context, id string) (*models.Operation, bool) {
	for _, op := range s.CustomOperations(ctx) {
		if op.ID == id {
			return op, true
		}
	}
	return nil, false
}

func upsert(ops []*models.Operation, op *models.Operation) []*models.Operation {
	out := make([]*models.Operation, 0, len(ops)+1)
	for _, existing := range ops {
		if existing.ID != op.ID {
			out = append(out, existing)
		}
	}
	return append(out, op)
}

// SaveCustom replaces any operation with the same id and appends op.
func (s *Store) SaveCustom(ctx context.Context, op *models.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := upsert(s.CustomOperations(ctx), op)
	if err := kvstore.SaveJSON(ctx, s.kv, KeyCustomOperations, ops); err != nil {
		return fmt.Errorf("save custom operation %s: %w", op.ID, err)
	}
	return nil
}

// UpdateCustom applies fn to the persisted operation id and writes it back.
// Nothing is written when fn fails.
func (s *Store) UpdateCustom(ctx context.Context, id string, fn func(*models.Operation) error) (*models.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := s.CustomOperations(ctx)
	var target *models.Operation
	for _, op := range ops {
		if op.ID == id {
			target = op
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	if err := fn(target); err != nil {
		return nil, err
	}
	if err := kvstore.SaveJSON(ctx, s.kv, KeyCustomOperations, ops); err != nil {
		return nil, fmt.Errorf("save custom operation %s: %w", id, err)
	}
	return target, nil
}

func (s *Store) associations(ctx context.Context) map[string][]string {
	assoc := kvstore.LoadJSON[map[string][]string](ctx, s.kv, s.logger, KeyDoctorOperations, nil)
	if assoc == nil {
		return map[string][]string{}
	}
	return assoc
}

// OperationsForDoctor returns the operation ids associated with the doctor,
// or an empty slice.
func (s *Store) OperationsForDoctor(ctx context.Context, doctorID string) []string {
	ids := s.associations(ctx)[doctorID]
	if ids == nil {
		return []string{}
	}
	return ids
}

func addAssociation(assoc map[string][]string, doctorID, operationID string) bool {
	for _, id := range assoc[doctorID] {
		if id == operationID {
			return false
		}
	}
	assoc[doctorID] = append(assoc[doctorID], operationID)
	return true
}

// AddOperationToDoctor records the association. Adding an existing pair is a
// no-op.
func (s *Store) AddOperationToDoctor(ctx context.Context, doctorID, operationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assoc := s.associations(ctx)
	if !addAssociation(assoc, doctorID, operationID) {
		return nil
	}
	if err := kvstore.SaveJSON(ctx, s.kv, KeyDoctorOperations, assoc); err != nil {
		return fmt.Errorf("save doctor operations: %w", err)
	}
	return nil
}

// SaveCustomForDoctor upserts op and associates it with the doctor in one
// atomic write.
func (s *Store) SaveCustomForDoctor(ctx context.Context, op *models.Operation, doctorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveForDoctor(ctx, s.CustomOperations(ctx), op, doctorID)
}

// CreateCustomForDoctor is SaveCustomForDoctor for a new operation. It fails
// with ErrConflict when the workspace already holds an operation with op's
// id; the check and the write happen under one lock.
func (s *Store) CreateCustomForDoctor(ctx context.Context, op *models.Operation, doctorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := s.CustomOperations(ctx)
	for _, existing := range ops {
		if existing.ID == op.ID {
			return fmt.Errorf("operation %s: %w", op.ID, ErrConflict)
		}
	}
	return s.saveForDoctor(ctx, ops, op, doctorID)
}

// saveForDoctor writes ops with op upserted plus the association. Callers
// hold s.mu.
func (s *Store) saveForDoctor(ctx context.Context, ops []*models.Operation, op *models.Operation, doctorID string) error {
	ops = upsert(ops, op)
	assoc := s.associations(ctx)
	addAssociation(assoc, doctorID, op.ID)

	batch := kvstore.Batch{}
	if err := batch.Put(KeyCustomOperations, ops); err != nil {
		return err
	}
	if err := batch.Put(KeyDoctorOperations, assoc); err != nil {
		return err
	}
	if err := batch.Commit(ctx, s.kv); err != nil {
		return fmt.Errorf("save operation %s for doctor %s: %w", op.ID, doctorID, err)
	}
	return nil
}

func (s *Store) stringList(ctx context.Context, key string) ([]string, bool) {
	list := kvstore.LoadJSON[[]string](ctx, s.kv, s.logger, key, nil)
	return list, list != nil
}

// MetaTags returns the stored tag override for an operation.
func (s *Store) MetaTags(ctx context.Context, operationID string) ([]string, bool) {
	return s.stringList(ctx, metaTagsKey(operationID))
}

// UpdateMetaTags rewrites the tag override. fn receives the current
// effective list.
func (s *Store) UpdateMetaTags(ctx context.Context, operationID string, current func() []string, fn func([]string) ([]string, error)) ([]string, error) {
	return s.updateList(ctx, metaTagsKey(operationID), current, fn)
}

// Products returns the stored product id override for an operation.
func (s *Store) Products(ctx context.Context, operationID string) ([]string, bool) {
	return s.stringList(ctx, productsKey(operationID))
}

// ResetMetaTags drops the tag override of an operation.
func (s *Store) ResetMetaTags(ctx context.Context, operationID string) error {
	return s.remove(ctx, metaTagsKey(operationID))
}

// ResetProducts drops the product override of an operation.
func (s *Store) ResetProducts(ctx context.Context, operationID string) error {
	return s.remove(ctx, productsKey(operationID))
}

func (s *Store) remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *Store) UpdateProducts(ctx context.Context, operationID string, current func() []string, fn func([]string) ([]string, error)) ([]string, error) {
	return s.updateList(ctx, productsKey(operationID), current, fn)
}

func (s *Store) updateList(ctx context.Context, key string, current func() []string, fn func([]string) ([]string, error)) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.stringList(ctx, key)
	if !ok {
		list = current()
	}
	next, err := fn(append([]string{}, list...))
	if err != nil {
		return nil, err
	}
	if err := kvstore.SaveJSON(ctx, s.kv, key, next); err != nil {
		return nil, fmt.Errorf("save %s: %w", key, err)
	}
	return next, nil
}
