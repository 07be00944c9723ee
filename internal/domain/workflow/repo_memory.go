package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/repcompanion/repcompanion/pkg/models"
)

type memoryTemplateRepo struct {
	mu        sync.RWMutex
	templates []*models.Operation
}

// NewMemoryTemplateRepo returns a repository seeded with deep copies of ops.
func NewMemoryTemplateRepo(ops []*models.Operation) TemplateRepository {
	r := &memoryTemplateRepo{}
	for _, op := range ops {
		r.templates = append(r.templates, op.Clone())
	}
	return r
}

func (r *memoryTemplateRepo) List(_ context.Context) ([]*models.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Operation, len(r.templates))
	for i, op := range r.templates {
		out[i] = op.Clone()
	}
	return out, nil
}

func (r *memoryTemplateRepo) GetByID(_ context.Context, id string) (*models.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.index(id); i >= 0 {
		return r.templates[i].Clone(), nil
	}
	return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
}

func (r *memoryTemplateRepo) Create(_ context.Context, op *models.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(op.ID) >= 0 {
		return fmt.Errorf("operation %s: %w", op.ID, ErrConflict)
	}
	r.templates = append(r.templates, op.Clone())
	return nil
}

func (r *memoryTemplateRepo) Update(_ context.Context, op *models.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(op.ID)
	if i < 0 {
		return fmt.Errorf("operation %s: %w", op.ID, ErrNotFound)
	}
	r.templates[i] = op.Clone()
	return nil
}

func (r *memoryTemplateRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	r.templates = append(r.templates[:i], r.templates[i+1:]...)
	return nil
}

func (r *memoryTemplateRepo) index(id string) int {
	for i, op := range r.templates {
		if op.ID == id {
			return i
		}
	}
	return -1
}
