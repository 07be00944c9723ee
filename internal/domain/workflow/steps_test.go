package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repcompanion/repcompanion/internal/platform/blobstore"
	"github.com/repcompanion/repcompanion/pkg/models"
)

func cloneKnee(t *testing.T, env *testEnv, ctx context.Context) string {
	t.Helper()
	op, err := env.svc.CloneTemplate(ctx, "d2", "op-knee")
	require.NoError(t, err)
	return op.ID
}

func TestAddStep_Defaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	id := cloneKnee(t, env, ctx)

	op, err := env.svc.AddStep(ctx, id)
	require.NoError(t, err)
	require.Len(t, op.Steps, 6)
	last := op.Steps[5]
	assert.Equal(t, 6, last.Order)
	assert.Equal(t, NewStepDescription, last.Description)
	assert.Equal(t, NewStepDuration, last.Duration)

	stored, err := env.svc.GetOperation(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored.Steps, 6)
}

func TestAddStep_OnTemplateStaysInMemory(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	_, err := env.svc.AddStep(ctx, "op-hip")
	require.NoError(t, err)
	tpl, err := env.svc.GetTemplate(ctx, "op-hip")
	require.NoError(t, err)
	assert.Len(t, tpl.Steps, 5)
	assert.Empty(t, env.kv.Keys())
}

func TestUpdateStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	id := cloneKnee(t, env, ctx)

	desc := "Medial approach"
	products := []string{"p1"}
	op, err := env.svc.UpdateStep(ctx, id, 2, StepPatch{Description: &desc, Products: &products})
	require.NoError(t, err)
	assert.Equal(t, desc, op.Steps[1].Description)
	assert.Equal(t, "15 min", op.Steps[1].Duration)
	assert.Equal(t, []string{"p1"}, op.Steps[1].Products)

	_, err = env.svc.UpdateStep(ctx, id, 9, StepPatch{Description: &desc})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.UpdateStep(ctx, "op-missing", 1, StepPatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveStep_Renumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	id := cloneKnee(t, env, ctx)

	op, err := env.svc.RemoveStep(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, op.Steps, 4)
	for i, st := range op.Steps {
		assert.Equal(t, i+1, st.Order)
	}
	assert.Equal(t, "Femoral and tibial bone preparation", op.Steps[1].Description)

	tpl, err := env.svc.GetTemplate(ctx, "op-knee")
	require.NoError(t, err)
	assert.Len(t, tpl.Steps, 5, "template must not change")
}

func TestRemoveStep_KeepsLastStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	op, err := env.svc.NewProcedure(ctx, "d1", ProcedureInput{
		Name: "Single", EstimatedDuration: "5 min", Steps: []models.OperationStep{{Description: "only"}},
	})
	require.NoError(t, err)

	_, err = env.svc.RemoveStep(ctx, op.ID, 1)
	assert.ErrorIs(t, err, ErrValidation)
	stored, err := env.svc.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Steps, 1)
}

func TestSets(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	id := cloneKnee(t, env, ctx)

	op, err := env.svc.AddSet(ctx, id, 2, SetInput{Description: " Retractor set ", SetsNumber: "2"})
	require.NoError(t, err)
	require.Len(t, op.Steps[1].Sets, 1)
	set := op.Steps[1].Sets[0]
	assert.True(t, strings.HasPrefix(set.ID, "set-"))
	assert.Equal(t, "Retractor set", set.Description)

	op, err = env.svc.UpdateSet(ctx, id, 2, set.ID, SetInput{Description: "Retractor set", SetsNumber: "3"})
	require.NoError(t, err)
	assert.Equal(t, "3", op.Steps[1].Sets[0].SetsNumber)

	_, err = env.svc.AddSet(ctx, id, 2, SetInput{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.svc.UpdateSet(ctx, id, 2, "set-missing", SetInput{Description: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	op, err = env.svc.RemoveSet(ctx, id, 2, set.ID)
	require.NoError(t, err)
	assert.Empty(t, op.Steps[1].Sets)
}

func TestAddLink_InfersType(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	id := cloneKnee(t, env, ctx)

	op, err := env.svc.AddLink(ctx, id, 1, LinkInput{Name: "Surgical technique.PDF", URL: "https://example.com/st.pdf"})
	require.NoError(t, err)
	att := op.Steps[0].Attachments[0]
	assert.Equal(t, models.AttachmentPDF, att.Type)
	assert.True(t, strings.HasPrefix(att.ID, "att-"))

	_, err = env.svc.AddLink(ctx, id, 1, LinkInput{Name: "missing url"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUploadAttachment_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	id := cloneKnee(t, env, ctx)

	meta, err := env.blobs.Upload(ctx, blobstore.BlobMetadata{FileName: "xray.png", Workspace: "rep-a"}, strings.NewReader("png"))
	require.NoError(t, err)

	op, err := env.svc.AddUpload(ctx, id, 3, UploadInput{BlobID: meta.ID})
	require.NoError(t, err)
	att := op.Steps[2].Attachments[0]
	assert.Equal(t, models.AttachmentImage, att.Type)
	assert.Equal(t, blobstore.AttachmentURL(meta.ID), att.URL)

	_, err = env.svc.AddUpload(ctx, id, 3, UploadInput{BlobID: meta.ID})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.svc.AddUpload(ws("rep-b"), "op-knee", 1, UploadInput{BlobID: meta.ID})
	assert.ErrorIs(t, err, ErrNotFound, "blob from another workspace")

	op, err = env.svc.RemoveAttachment(ctx, id, 3, att.ID)
	require.NoError(t, err)
	assert.Empty(t, op.Steps[2].Attachments)
	assert.Equal(t, 0, env.blobs.Len(), "blob should be released")

	_, err = env.svc.RemoveAttachment(ctx, id, 3, att.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveStep_ReleasesUploads(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	id := cloneKnee(t, env, ctx)

	meta, err := env.blobs.Upload(ctx, blobstore.BlobMetadata{FileName: "notes.docx"}, strings.NewReader("doc"))
	require.NoError(t, err)
	_, err = env.svc.AddUpload(ctx, id, 4, UploadInput{BlobID: meta.ID})
	require.NoError(t, err)

	_, err = env.svc.RemoveStep(ctx, id, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, env.blobs.Len())
}

func uploadBlob(t *testing.T, env *testEnv, workspace, name string) *blobstore.BlobMetadata {
	t.Helper()
	meta, err := env.blobs.Upload(ws(workspace), blobstore.BlobMetadata{FileName: name, Workspace: workspace}, strings.NewReader(name))
	require.NoError(t, err)
	return meta
}

func findAttachment(st models.OperationStep, id string) bool {
	for _, att := range st.Attachments {
		if att.ID == id {
			return true
		}
	}
	return false
}

func TestRemoveAttachment_KeepsBlobSharedWithTemplate(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	meta := uploadBlob(t, env, "rep-a", "guide.pdf")

	_, err := env.svc.AddUpload(ctx, "op-knee", 1, UploadInput{BlobID: meta.ID})
	require.NoError(t, err)
	id := cloneKnee(t, env, ctx)

	_, err = env.svc.RemoveAttachment(ctx, id, 1, meta.ID)
	require.NoError(t, err)

	tpl, err := env.svc.GetOperation(ctx, "op-knee")
	require.NoError(t, err)
	assert.True(t, findAttachment(tpl.Steps[0], meta.ID), "template keeps its attachment")
	_, err = env.blobs.GetMetadata(ctx, meta.ID)
	assert.NoError(t, err, "blob is still referenced by the template")

	// Removing the whole step of a second clone leaves the blob alone too.
	other, err := env.svc.CloneTemplate(ctx, "d3", "op-knee")
	require.NoError(t, err)
	_, err = env.svc.RemoveStep(ctx, other.ID, 1)
	require.NoError(t, err)
	_, err = env.blobs.GetMetadata(ctx, meta.ID)
	assert.NoError(t, err)

	// Template attachments are never released on detach.
	_, err = env.svc.RemoveAttachment(ctx, "op-knee", 1, meta.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.blobs.Len())
}

func TestRemoveAttachment_ForeignBlobSurvives(t *testing.T) {
	env := newTestEnv(t)
	meta := uploadBlob(t, env, "rep-a", "private.png")

	t.Run("link to another workspace's blob", func(t *testing.T) {
		ctx := ws("rep-b")
		id := cloneKnee(t, env, ctx)
		op, err := env.svc.AddLink(ctx, id, 1, LinkInput{Name: "private.png", URL: blobstore.AttachmentURL(meta.ID)})
		require.NoError(t, err)
		link := op.Steps[0].Attachments[len(op.Steps[0].Attachments)-1]

		_, err = env.svc.RemoveAttachment(ctx, id, 1, link.ID)
		require.NoError(t, err)
		_, err = env.blobs.GetMetadata(ctx, meta.ID)
		assert.NoError(t, err)
	})

	t.Run("upload inherited through a template clone", func(t *testing.T) {
		_, err := env.svc.AddUpload(ws("rep-a"), "op-hip", 1, UploadInput{BlobID: meta.ID})
		require.NoError(t, err)
		ctx := ws("rep-b")
		clone, err := env.svc.CloneTemplate(ctx, "d2", "op-hip")
		require.NoError(t, err)
		require.True(t, findAttachment(clone.Steps[0], meta.ID))

		_, err = env.svc.RemoveAttachment(ctx, clone.ID, 1, meta.ID)
		require.NoError(t, err)
		_, err = env.blobs.GetMetadata(ctx, meta.ID)
		assert.NoError(t, err)
	})
}

func TestRemoveAttachment_ReleasesAfterLastReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")
	meta := uploadBlob(t, env, "rep-a", "sizing.pdf")

	knee := cloneKnee(t, env, ctx)
	hip, err := env.svc.CloneTemplate(ctx, "d2", "op-hip")
	require.NoError(t, err)
	for _, id := range []string{knee, hip.ID} {
		_, err := env.svc.AddUpload(ctx, id, 1, UploadInput{BlobID: meta.ID})
		require.NoError(t, err)
	}

	_, err = env.svc.RemoveAttachment(ctx, knee, 1, meta.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.blobs.Len(), "still attached to the hip procedure")

	_, err = env.svc.RemoveStep(ctx, hip.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, env.blobs.Len())
}

func TestMetaTags(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	tags, err := env.svc.MetaTags(ctx, "op-knee")
	require.NoError(t, err)
	assert.Equal(t, []string{"joint", "knee"}, tags)

	tags, err = env.svc.MetaTags(ctx, "op-hip")
	require.NoError(t, err)
	assert.Equal(t, []string{"joint"}, tags, "falls back to the category")

	tags, err = env.svc.AddMetaTag(ctx, "op-hip", "  anterior ")
	require.NoError(t, err)
	assert.Equal(t, []string{"joint", "anterior"}, tags)

	tags, err = env.svc.AddMetaTag(ctx, "op-hip", "anterior")
	require.NoError(t, err)
	assert.Equal(t, []string{"joint", "anterior"}, tags)

	_, err = env.svc.AddMetaTag(ctx, "op-hip", "   ")
	assert.ErrorIs(t, err, ErrValidation)

	tags, err = env.svc.RemoveMetaTag(ctx, "op-hip", "joint")
	require.NoError(t, err)
	assert.Equal(t, []string{"anterior"}, tags)

	tags, err = env.svc.RemoveMetaTag(ctx, "op-hip", "anterior")
	require.NoError(t, err)
	assert.Equal(t, []string{}, tags)
	tags, err = env.svc.MetaTags(ctx, "op-hip")
	require.NoError(t, err)
	assert.Equal(t, []string{}, tags, "an emptied list stays empty")

	other, err := env.svc.MetaTags(ws("rep-b"), "op-hip")
	require.NoError(t, err)
	assert.Equal(t, []string{"joint"}, other)

	_, err = env.svc.MetaTags(ctx, "op-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOperationProducts(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	view, err := env.svc.OperationProducts(ctx, "op-knee")
	require.NoError(t, err)
	require.Len(t, view.Selected, 2)
	for _, g := range view.Available {
		for _, p := range g.Products {
			assert.NotContains(t, []string{"p1", "p10"}, p.ID)
			assert.Equal(t, g.Category, p.Category)
		}
	}

	view, err = env.svc.AddProduct(ctx, "op-knee", "p8")
	require.NoError(t, err)
	assert.Len(t, view.Selected, 3)

	view, err = env.svc.AddProduct(ctx, "op-knee", "p8")
	require.NoError(t, err)
	assert.Len(t, view.Selected, 3)

	_, err = env.svc.AddProduct(ctx, "op-knee", "p999")
	assert.ErrorIs(t, err, ErrValidation)

	view, err = env.svc.RemoveProduct(ctx, "op-knee", "p1")
	require.NoError(t, err)
	ids := []string{}
	for _, p := range view.Selected {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p10", "p8"}, ids)

	tpl, err := env.svc.GetTemplate(ctx, "op-knee")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p10"}, tpl.ProductsUsed)
}

func TestResetOverrides(t *testing.T) {
	env := newTestEnv(t)
	ctx := ws("rep-a")

	_, err := env.svc.AddMetaTag(ctx, "op-hip", "anterior")
	require.NoError(t, err)
	_, err = env.svc.AddProduct(ctx, "op-knee", "p8")
	require.NoError(t, err)
	require.Contains(t, env.kv.Keys(), "ws:rep-a:"+metaTagsKey("op-hip"))
	require.Contains(t, env.kv.Keys(), "ws:rep-a:"+productsKey("op-knee"))

	tags, err := env.svc.ResetMetaTags(ctx, "op-hip")
	require.NoError(t, err)
	assert.Equal(t, []string{"joint"}, tags)
	view, err := env.svc.ResetProducts(ctx, "op-knee")
	require.NoError(t, err)
	assert.Len(t, view.Selected, 2)

	assert.NotContains(t, env.kv.Keys(), "ws:rep-a:"+metaTagsKey("op-hip"))
	assert.NotContains(t, env.kv.Keys(), "ws:rep-a:"+productsKey("op-knee"))

	_, err = env.svc.ResetMetaTags(ctx, "op-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
