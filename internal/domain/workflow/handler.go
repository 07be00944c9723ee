package workflow

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/repcompanion/repcompanion/pkg/models"
	"github.com/repcompanion/repcompanion/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/templates", h.ListTemplates)
	api.GET("/templates/categories", h.TemplateCategories)
	api.GET("/templates/:id", h.GetTemplate)
	api.POST("/templates", h.CreateTemplate)
	api.PUT("/templates/:id", h.UpdateTemplate)
	api.DELETE("/templates/:id", h.DeleteTemplate)

	api.GET("/doctors/:id/procedures", h.DoctorProcedures)
	api.POST("/doctors/:id/procedures", h.NewProcedure)
	api.POST("/doctors/:id/procedures/clone", h.CloneTemplate)
	api.GET("/doctors/:id/available-templates", h.AvailableTemplates)

	ops := api.Group("/operations/:id")
	ops.GET("", h.GetOperation)
	ops.POST("/steps", h.AddStep)
	ops.PATCH("/steps/:order", h.UpdateStep)
	ops.DELETE("/steps/:order", h.RemoveStep)
	ops.POST("/steps/:order/sets", h.AddSet)
	ops.PUT("/steps/:order/sets/:setId", h.UpdateSet)
	ops.DELETE("/steps/:order/sets/:setId", h.RemoveSet)
	ops.POST("/steps/:order/links", h.AddLink)
	ops.POST("/steps/:order/uploads", h.AddUpload)
	ops.DELETE("/steps/:order/attachments/:attachmentId", h.RemoveAttachment)
	ops.GET("/meta-tags", h.MetaTags)
	ops.POST("/meta-tags", h.AddMetaTag)
	ops.DELETE("/meta-tags", h.ResetMetaTags)
	ops.DELETE("/meta-tags/:tag", h.RemoveMetaTag)
	ops.GET("/products", h.OperationProducts)
	ops.POST("/products", h.AddProduct)
	ops.DELETE("/products", h.ResetProducts)
	ops.DELETE("/products/:productId", h.RemoveProduct)

	wf := api.Group("/workflows/hospitals")
	wf.GET("", h.BrowseHospitals)
	wf.GET("/:hospitalId", h.BrowseHospital)
	wf.GET("/:hospitalId/doctors/:doctorId", h.BrowseDoctor)
	wf.GET("/:hospitalId/doctors/:doctorId/operations/:operationId", h.BrowseOperation)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}

func respond(c echo.Context, status int, v interface{}, err error) error {
	if err != nil {
		return httpError(err)
	}
	return c.JSON(status, v)
}

func stepOrder(c echo.Context) (int, error) {
	order, err := strconv.Atoi(c.Param("order"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid step number")
	}
	return order, nil
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// -- Templates --

func (h *Handler) ListTemplates(c echo.Context) error {
	f := TemplateFilter{Query: c.QueryParam("q"), Category: c.QueryParam("category")}
	ops, err := h.svc.ListTemplates(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(ops, pagination.FromContext(c)))
}

func (h *Handler) TemplateCategories(c echo.Context) error {
	counts, err := h.svc.TemplateCategories(c.Request().Context())
	return respond(c, http.StatusOK, counts, err)
}

func (h *Handler) GetTemplate(c echo.Context) error {
	op, err := h.svc.GetTemplate(c.Request().Context(), c.Param("id"))
	return respond(c, http.StatusOK, op, err)
}

func (h *Handler) CreateTemplate(c echo.Context) error {
	var in TemplateInput
	if err := bind(c, &in); err != nil {
		return err
	}
	op, err := h.svc.CreateTemplate(c.Request().Context(), in)
	return respond(c, http.StatusCreated, op, err)
}

func (h *Handler) UpdateTemplate(c echo.Context) error {
	var in TemplateInput
	if err := bind(c, &in); err != nil {
		return err
	}
	op, err := h.svc.UpdateTemplate(c.Request().Context(), c.Param("id"), in)
	return respond(c, http.StatusOK, op, err)
}

func (h *Handler) DeleteTemplate(c echo.Context) error {
	if err := h.svc.DeleteTemplate(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Doctor procedures --

func (h *Handler) DoctorProcedures(c echo.Context) error {
	ops, err := h.svc.DoctorProcedures(c.Request().Context(), c.Param("id"))
	return respond(c, http.StatusOK, ops, err)
}

func (h *Handler) AvailableTemplates(c echo.Context) error {
	groups, err := h.svc.AvailableTemplates(c.Request().Context(), c.Param("id"))
	return respond(c, http.StatusOK, groups, err)
}

func (h *Handler) CloneTemplate(c echo.Context) error {
	var body struct {
		TemplateID string `json:"templateId"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	if body.TemplateID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "templateId is required")
	}
	op, err := h.svc.CloneTemplate(c.Request().Context(), c.Param("id"), body.TemplateID)
	return respond(c, http.StatusCreated, op, err)
}

func (h *Handler) NewProcedure(c echo.Context) error {
	var in ProcedureInput
	if err := bind(c, &in); err != nil {
		return err
	}
	op, err := h.svc.NewProcedure(c.Request().Context(), c.Param("id"), in)
	return respond(c, http.StatusCreated, op, err)
}

// -- Operation editors --

func (h *Handler) GetOperation(c echo.Context) error {
	op, err := h.svc.GetOperation(c.Request().Context(), c.Param("id"))
	return respond(c, http.StatusOK, op, err)
}

func (h *Handler) AddStep(c echo.Context) error {
	op, err := h.svc.AddStep(c.Request().Context(), c.Param("id"))
	return respond(c, http.StatusCreated, op, err)
}

func (h *Handler) UpdateStep(c echo.Context) error {
	order, err := stepOrder(c)
	if err != nil {
		return err
	}
	var p StepPatch
	if err := bind(c, &p); err != nil {
		return err
	}
	op, err := h.svc.UpdateStep(c.Request().Context(), c.Param("id"), order, p)
	return respond(c, http.StatusOK, op, err)
}

func (h *Handler) RemoveStep(c echo.Context) error {
	order, err := stepOrder(c)
	if err != nil {
		return err
	}
	op, err := h.svc.RemoveStep(c.Request().Context(), c.Param("id"), order)
	return respond(c, http.StatusOK, op, err)
}

func (h *Handler) AddSet(c echo.Context) error {
	order, err := stepOrder(c)
	if err != nil {
		return err
	}
	var in SetInput
	if err := bind(c, &in); err != nil {
		return err
	}
	op, err := h.svc.AddSet(c.Request().Context(), c.Param("id"), order, in)
	return respond(c, http.StatusCreated, op, err)
}

func (h *Handler) UpdateSet(c echo.Context) error {
	order, err := stepOrder(c)
	if err != nil {
		return err
	}
	var in SetInput
	if err := bind(c, &in); err != nil {
		return err
	}
	op, err := h.svc.UpdateSet(c.Request().Context(), c.Param("id"), order, c.Param("setId"), in)
	return respond(c, http.StatusOK, op, err)
}

func (h *Handler) RemoveSet(c echo.Context) error {
	order, err := stepOrder(c)
	if err != nil {
		return err
	}
	op, err := h.svc.RemoveSet(c.Request().Context(), c.Param("id"), order, c.Param("setId"))
	return respond(c, http.StatusOK, op, err)
}

func (h *Handler) AddLink(c echo.Context) error {
	order, err := stepOrder(c)
	if err != nil {
		return err
	}
	var in LinkInput
	if err := bind(c, &in); err != nil {
		return err
	}
	op, err := h.svc.AddLink(c.Request().Context(), c.Param("id"), order, in)
	return respond(c, http.StatusCreated, op, err)
}

func (h *Handler) AddUpload(c echo.Context) error {
	order, err := stepOrder(c)
	if err != nil {
		return err
	}
	var in UploadInput
	if err := bind(c, &in); err != nil {
		return err
	}
	op, err := h.svc.AddUpload(c.Request().Context(), c.Param("id"), order, in)
	return respond(c, http.StatusCreated, op, err)
}

func (h *Handler) RemoveAttachment(c echo.Context) error {
	order, err := stepOrder(c)
	if err != nil {
		return err
	}
	op, err := h.svc.RemoveAttachment(c.Request().Context(), c.Param("id"), order, c.Param("attachmentId"))
	return respond(c, http.StatusOK, op, err)
}

func (h *Handler) MetaTags(c echo.Context) error {
	tags, err := h.svc.MetaTags(c.Request().Context(), c.Param("id"))
	return respond(c, http.StatusOK, tags, err)
}

func (h *Handler) AddMetaTag(c echo.Context) error {
	var body struct {
		Tag string `json:"tag"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	tags, err := h.svc.AddMetaTag(c.Request().Context(), c.Param("id"), body.Tag)
	return respond(c, http.StatusOK, tags, err)
}

func (h *Handler) RemoveMetaTag(c echo.Context) error {
	tag, err := url.PathUnescape(c.Param("tag"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid tag")
	}
	tags, err := h.svc.RemoveMetaTag(c.Request().Context(), c.Param("id"), tag)
	return respond(c, http.StatusOK, tags, err)
}

func (h *Handler) ResetMetaTags(c echo.Context) error {
	tags, err := h.svc.ResetMetaTags(c.Request().Context(), c.Param("id"))
	return respond(c, http.StatusOK, tags, err)
}

func (h *Handler) OperationProducts(c echo.Context) error {
	view, err := h.svc.OperationProducts(c.Request().Context(), c.Param("id"))
	return respond(c, http.StatusOK, view, err)
}

func (h *Handler) AddProduct(c echo.Context) error {
	var body struct {
		ProductID string `json:"productId"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	view, err := h.svc.AddProduct(c.Request().Context(), c.Param("id"), body.ProductID)
	return respond(c, http.StatusOK, view, err)
}

func (h *Handler) RemoveProduct(c echo.Context) error {
	view, err := h.svc.RemoveProduct(c.Request().Context(), c.Param("id"), c.Param("productId"))
	return respond(c, http.StatusOK, view, err)
}

func (h *Handler) ResetProducts(c echo.Context) error {
	view, err := h.svc.ResetProducts(c.Request().Context(), c.Param("id"))
	return respond(c, http.StatusOK, view, err)
}

// -- Workflow browser --

func (h *Handler) BrowseHospitals(c echo.Context) error {
	hospitals, err := h.svc.BrowseHospitals(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if hospitals == nil {
		hospitals = []*models.Hospital{}
	}
	return c.JSON(http.StatusOK, hospitals)
}

func (h *Handler) BrowseHospital(c echo.Context) error {
	view, err := h.svc.BrowseHospital(c.Request().Context(), c.Param("hospitalId"))
	return respond(c, http.StatusOK, view, err)
}

func (h *Handler) BrowseDoctor(c echo.Context) error {
	view, err := h.svc.BrowseDoctor(c.Request().Context(), c.Param("hospitalId"), c.Param("doctorId"))
	return respond(c, http.StatusOK, view, err)
}

func (h *Handler) BrowseOperation(c echo.Context) error {
	view, err := h.svc.BrowseOperation(c.Request().Context(), c.Param("hospitalId"), c.Param("doctorId"), c.Param("operationId"))
	return respond(c, http.StatusOK, view, err)
}
