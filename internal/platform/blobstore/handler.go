package blobstore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/repcompanion/repcompanion/internal/platform/kvstore"
	"github.com/repcompanion/repcompanion/pkg/models"
)

// URLPrefix is the path under which uploaded attachments are served.
const URLPrefix = "/api/v1/attachments/"

// AttachmentURL returns the download URL of blob id.
func AttachmentURL(id string) string {
	return URLPrefix + id
}

// Handler serves attachment upload, download and deletion.
type Handler struct {
	store  BlobStore
	logger zerolog.Logger
}

func NewHandler(store BlobStore, logger zerolog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/attachments")
	g.POST("", h.Upload)
	g.GET("/:id", h.Download)
	g.GET("/:id/metadata", h.GetMetadata)
	g.DELETE("/:id", h.Delete)
}

// Upload stores the multipart "file" field and returns a step attachment
// pointing at it.
func (h *Handler) Upload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	ctx := c.Request().Context()
	meta := BlobMetadata{
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Workspace:   kvstore.WorkspaceFromContext(ctx),
	}
	result, err := h.store.Upload(ctx, meta, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ErrMissingFileName):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Str("file", file.Filename).Msg("attachment upload failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store attachment")
	}

	return c.JSON(http.StatusCreated, models.StepAttachment{
		ID:   result.ID,
		Name: result.FileName,
		Type: models.InferAttachmentType(result.FileName),
		URL:  AttachmentURL(result.ID),
	})
}

func (h *Handler) Download(c echo.Context) error {
	ctx := c.Request().Context()
	rc, meta, err := h.store.Download(ctx, c.Param("id"))
	if err != nil {
		return h.mapError(err)
	}
	defer rc.Close()
	if !Visible(meta, kvstore.WorkspaceFromContext(ctx)) {
		return echo.NewHTTPError(http.StatusNotFound, ErrBlobNotFound.Error())
	}

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *Handler) GetMetadata(c echo.Context) error {
	ctx := c.Request().Context()
	meta, err := h.store.GetMetadata(ctx, c.Param("id"))
	if err != nil {
		return h.mapError(err)
	}
	if !Visible(meta, kvstore.WorkspaceFromContext(ctx)) {
		return echo.NewHTTPError(http.StatusNotFound, ErrBlobNotFound.Error())
	}
	return c.JSON(http.StatusOK, meta)
}

func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	meta, err := h.store.GetMetadata(ctx, id)
	if err != nil {
		return h.mapError(err)
	}
	if !Visible(meta, kvstore.WorkspaceFromContext(ctx)) {
		return echo.NewHTTPError(http.StatusNotFound, ErrBlobNotFound.Error())
	}
	if err := h.store.Delete(ctx, id); err != nil {
		return h.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) mapError(err error) error {
	if errors.Is(err, ErrBlobNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	h.logger.Error().Err(err).Msg("attachment storage error")
	return echo.NewHTTPError(http.StatusInternalServerError, "attachment storage error")
}

// Visible reports whether a blob belongs to workspace. Blobs stored without a
// workspace are visible everywhere.
func Visible(meta *BlobMetadata, workspace string) bool {
	return meta.Workspace == "" || meta.Workspace == workspace
}
