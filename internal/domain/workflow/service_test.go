package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repcompanion/repcompanion/internal/domain/catalog"
	"github.com/repcompanion/repcompanion/internal/domain/directory"
	"github.com/repcompanion/repcompanion/internal/platform/blobstore"
	"github.com/repcompanion/repcompanion/internal/platform/kvstore"
	"github.com/repcompanion/repcompanion/internal/seed"
	"github.com/repcompanion/repcompanion/pkg/models"
)

var fixedNow = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	svc   *Service
	kv    *kvstore.Memory
	blobs *blobstore.InMemoryBlobStore
	data  *seed.Data
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	data, err := seed.Load()
	require.NoError(t, err)

	kv := kvstore.NewMemory()
	blobs := blobstore.NewInMemoryBlobStore()
	dir := directory.NewService(directory.NewMemoryDoctorRepo(data.Doctors), directory.NewMemoryHospitalRepo(data.Hospitals))
	cat := catalog.NewService(catalog.NewMemoryProductRepo(data.Products))
	store := NewStore(kvstore.NewScoped(kv), zerolog.Nop())
	svc := NewService(NewMemoryTemplateRepo(data.Operations), store, dir, cat, blobs, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return &testEnv{svc: svc, kv: kv, blobs: blobs, data: data}
}

func ws(id string) context.Context {
	return kvstore.WithWorkspace(context.Background(), id)
}

func opIDs(ops []*models.Operation) []string {
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	return ids
}

func TestGetOperation_TemplateThenCustom(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	op, err := env.svc.GetOperation(ctx, "op-knee")
	require.NoError(t, err)
	assert.Equal(t, "Primary Total Knee Arthroplasty", op.Name)

	_, err = env.svc.GetOperation(ctx, "op-knee-d2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.CloneTemplate(ctx, "d2", "op-knee")
	require.NoError(t, err)
	op, err = env.svc.GetOperation(ctx, "op-knee-d2")
	require.NoError(t, err)
	assert.Equal(t, "op-knee", op.SourceTemplateID)
}

func TestCloneTemplate_Scenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	clone, err := env.svc.CloneTemplate(ctx, "d2", "op-knee")
	require.NoError(t, err)
	assert.Equal(t, "op-knee-d2", clone.ID)
	assert.Equal(t, "d2", clone.OwnerDoctorID)
	assert.Equal(t, []string{"p1", "p10"}, clone.ProductsUsed)

	procedures, err := env.svc.DoctorProcedures(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, []string{"op-tibial-plateau", "op-hip-fracture", "op-knee-d2"}, opIDs(procedures))

	// Both keys are written in the same workspace.
	assert.Contains(t, env.kv.Keys(), "ws:rep-a:"+KeyCustomOperations)
	assert.Contains(t, env.kv.Keys(), "ws:rep-a:"+KeyDoctorOperations)

	available, err := env.svc.AvailableTemplates(ctx, "d2")
	require.NoError(t, err)
	for _, g := range available {
		for _, op := range g.Operations {
			assert.NotContains(t, []string{"op-knee", "op-tibial-plateau", "op-hip-fracture"}, op.ID)
		}
	}

	_, err = env.svc.CloneTemplate(ctx, "d2", "op-knee")
	assert.ErrorIs(t, err, ErrConflict)

	other, err := env.svc.DoctorProcedures(ws("rep-b"), "d2")
	require.NoError(t, err)
	assert.Equal(t, []string{"op-tibial-plateau", "op-hip-fracture"}, opIDs(other))
}

func TestCloneTemplate_StepsAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	_, err := env.svc.CloneTemplate(ctx, "d2", "op-knee")
	require.NoError(t, err)

	notes := "Surgeon prefers a thigh tourniquet"
	_, err = env.svc.UpdateStep(ctx, "op-knee-d2", 1, StepPatch{Notes: &notes})
	require.NoError(t, err)
	_, err = env.svc.AddSet(ctx, "op-knee-d2", 1, SetInput{Description: "Extra retractors", SetsNumber: "2"})
	require.NoError(t, err)
	_, err = env.svc.AddProduct(ctx, "op-knee-d2", "p2")
	require.NoError(t, err)

	tpl, err := env.svc.GetTemplate(ctx, "op-knee")
	require.NoError(t, err)
	assert.Equal(t, "Supine with leg holder.", tpl.Steps[0].Notes)
	assert.Len(t, tpl.Steps[0].Sets, 1)
	assert.Equal(t, []string{"p1", "p10"}, tpl.ProductsUsed)

	clone, err := env.svc.GetOperation(ctx, "op-knee-d2")
	require.NoError(t, err)
	assert.Equal(t, notes, clone.Steps[0].Notes)
	assert.Len(t, clone.Steps[0].Sets, 2)
}

func TestCloneTemplate_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	_, err := env.svc.CloneTemplate(ctx, "d404", "op-knee")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "doctor d404")

	_, err = env.svc.CloneTemplate(ctx, "d2", "op-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDoctorProcedures_OwnerAndAssociations(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	// An operation owned by the doctor but missing from the association map
	// is still listed; one whose id merely ends in the doctor id is not.
	require.NoError(t, env.svc.store.SaveCustom(ctx, &models.Operation{
		ID: "op-orphan", Name: "Owned", Category: models.CategoryTrauma, OwnerDoctorID: "d1",
	}))
	require.NoError(t, env.svc.store.SaveCustom(ctx, &models.Operation{
		ID: "op-lookalike-d1", Name: "Not owned", Category: models.CategoryJoint, OwnerDoctorID: "d3",
	}))
	require.NoError(t, env.svc.store.AddOperationToDoctor(ctx, "d1", "op-spine-fusion"))
	require.NoError(t, env.svc.store.AddOperationToDoctor(ctx, "d1", "op-knee"))
	require.NoError(t, env.svc.store.AddOperationToDoctor(ctx, "d1", "op-gone"))

	procedures, err := env.svc.DoctorProcedures(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"op-knee", "op-hip", "op-spine-fusion", "op-orphan"}, opIDs(procedures))

	_, err = env.svc.DoctorProcedures(ctx, "d404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAvailableTemplates_GroupedByCategory(t *testing.T) {
	env := newTestEnv(t)
	groups, err := env.svc.AvailableTemplates(ws("rep-a"), "d1")
	require.NoError(t, err)

	var categories []string
	var ids []string
	for _, g := range groups {
		categories = append(categories, g.Category)
		for _, op := range g.Operations {
			assert.Equal(t, g.Category, op.Category)
			ids = append(ids, op.ID)
		}
	}
	assert.Equal(t, []string{models.CategoryJoint, models.CategoryTrauma, models.CategorySpine}, categories)
	assert.NotContains(t, ids, "op-knee")
	assert.NotContains(t, ids, "op-hip")
	assert.Contains(t, ids, "op-revision-knee")
}

func TestNewProcedure(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	op, err := env.svc.NewProcedure(ctx, "d4", ProcedureInput{
		Name:              "Lumbar Decompression",
		Category:          models.CategorySpine,
		EstimatedDuration: "60 min",
		Steps: []models.OperationStep{
			{Order: 7, Description: "Exposure", Products: []string{"p1"}},
			{Order: 9, Description: "Decompression"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "op-1740988800000-d4", op.ID)
	assert.Equal(t, "d4", op.OwnerDoctorID)
	assert.Empty(t, op.SourceTemplateID)
	assert.Equal(t, 1, op.Steps[0].Order)
	assert.Equal(t, 2, op.Steps[1].Order)
	assert.Equal(t, []string{}, op.Steps[0].Products)
	assert.Equal(t, []string{}, op.ProductsUsed)

	procedures, err := env.svc.DoctorProcedures(ctx, "d4")
	require.NoError(t, err)
	assert.Contains(t, opIDs(procedures), op.ID)

	second, err := env.svc.NewProcedure(ctx, "d4", ProcedureInput{
		Name: "Second", EstimatedDuration: "5 min", Steps: []models.OperationStep{{Description: "x"}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, op.ID, second.ID)
	assert.Equal(t, models.CategoryJoint, second.Category)
}

func TestNewProcedure_Validation(t *testing.T) {
	env := newTestEnv(t)
	step := []models.OperationStep{{Description: "x"}}
	tests := []struct {
		name string
		in   ProcedureInput
	}{
		{"missing name", ProcedureInput{EstimatedDuration: "5 min", Steps: step}},
		{"missing duration", ProcedureInput{Name: "x", Steps: step}},
		{"bad category", ProcedureInput{Name: "x", Category: "cardiac", EstimatedDuration: "5 min", Steps: step}},
		{"no steps", ProcedureInput{Name: "x", EstimatedDuration: "5 min"}},
		{"blank step", ProcedureInput{Name: "x", EstimatedDuration: "5 min", Steps: []models.OperationStep{{Description: " "}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.NewProcedure(ws("rep-a"), "d1", tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.NotContains(t, env.kv.Keys(), "ws:rep-a:"+KeyCustomOperations)
}

func TestTemplateAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateTemplate(ctx, TemplateInput{Name: "Ankle ORIF", Category: models.CategoryTrauma})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "please fill in all required fields")

	op, err := env.svc.CreateTemplate(ctx, TemplateInput{
		Name: "Ankle ORIF", Category: models.CategoryTrauma, Description: "Open reduction of ankle fracture",
	})
	require.NoError(t, err)
	assert.Equal(t, "op-1740988800000", op.ID)
	require.Len(t, op.Steps, 1)
	assert.Equal(t, DefaultTemplateDuration, op.Steps[0].Duration)

	updated, err := env.svc.UpdateTemplate(ctx, op.ID, TemplateInput{
		Name: "Ankle ORIF", Category: models.CategoryTrauma, Description: "Updated",
		Steps: []models.OperationStep{{Order: 3, Description: "a"}, {Order: 3, Description: "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Steps[0].Order)
	assert.Equal(t, 2, updated.Steps[1].Order)

	list, err := env.svc.ListTemplates(ctx, TemplateFilter{Query: "ORIF"})
	require.NoError(t, err)
	assert.Equal(t, []string{op.ID}, opIDs(list))

	counts, err := env.svc.TemplateCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, CategoryCount{Category: models.CategoryTrauma, Count: 3}, counts[1])

	require.NoError(t, env.svc.DeleteTemplate(ctx, op.ID))
	_, err = env.svc.GetTemplate(ctx, op.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTemplates_Filters(t *testing.T) {
	env := newTestEnv(t)
	ops, err := env.svc.ListTemplates(context.Background(), TemplateFilter{Category: models.CategorySpine})
	require.NoError(t, err)
	assert.Equal(t, []string{"op-spine-fusion"}, opIDs(ops))

	ops, err = env.svc.ListTemplates(context.Background(), TemplateFilter{Query: "ATTUNE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"op-knee", "op-revision-knee"}, opIDs(ops))
}

func TestBrowseOperation_NamesFirstMissingEntity(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	_, err := env.svc.BrowseOperation(ctx, "h404", "d404", "op-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "hospital h404")

	_, err = env.svc.BrowseOperation(ctx, "h1", "d404", "op-404")
	assert.Contains(t, err.Error(), "doctor d404")

	_, err = env.svc.BrowseOperation(ctx, "h1", "d1", "op-404")
	assert.Contains(t, err.Error(), "operation op-404")

	view, err := env.svc.BrowseOperation(ctx, "h1", "d1", "op-knee")
	require.NoError(t, err)
	assert.Equal(t, []string{"joint", "knee"}, view.MetaTags)
	require.Len(t, view.ProductsUsed, 2)
	assert.Equal(t, "p1", view.ProductsUsed[0].ID)
	require.Len(t, view.Steps, 5)
	assert.Len(t, view.Steps[4].ResolvedProducts, 2)
}

func TestBrowseHospitalAndDoctor(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	hospitals, err := env.svc.BrowseHospitals(ctx)
	require.NoError(t, err)
	for _, h := range hospitals {
		assert.True(t, h.HasSurgicalWorkflows)
	}

	hv, err := env.svc.BrowseHospital(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, hv.Doctors, 4)

	dv, err := env.svc.BrowseDoctor(ctx, "h1", "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"op-knee", "op-hip"}, opIDs(dv.Procedures))
	assert.NotEmpty(t, dv.AvailableTemplates)

	_, err = env.svc.BrowseDoctor(ctx, "h1", "d404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloneTemplate_ConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	const callers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.CloneTemplate(ctx, "d2", "op-knee")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, conflicts)
	assert.Len(t, env.svc.store.CustomOperations(ctx), 1)
}

func TestNewProcedure_ConcurrentDistinctIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	const callers = 8

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op, err := env.svc.NewProcedure(ctx, "d4", ProcedureInput{
				Name: "Parallel", EstimatedDuration: "5 min", Steps: []models.OperationStep{{Description: "x"}},
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			ids[op.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, callers)
	assert.Len(t, env.svc.store.OperationsForDoctor(ctx, "d4"), callers)
}
