package directory

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/repcompanion/repcompanion/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/facets", h.DoctorFacets)
	api.GET("/doctors/:id", h.GetDoctor)
	api.POST("/doctors", h.CreateDoctor)
	api.PUT("/doctors/:id", h.UpdateDoctor)
	api.PATCH("/doctors/:id", h.PatchDoctor)
	api.DELETE("/doctors/:id", h.DeleteDoctor)

	api.GET("/hospitals", h.ListHospitals)
	api.GET("/hospitals/facets", h.HospitalFacets)
	api.GET("/hospitals/:id", h.GetHospital)
	api.GET("/hospitals/:id/doctors", h.HospitalDoctors)
	api.POST("/hospitals", h.CreateHospital)
	api.PUT("/hospitals/:id", h.UpdateHospital)
	api.POST("/hospitals/:id/toggle-surgical", h.ToggleSurgicalWorkflows)
	api.DELETE("/hospitals/:id", h.DeleteHospital)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

// -- Doctors --

func (h *Handler) ListDoctors(c echo.Context) error {
	f := DoctorFilter{
		Query:      c.QueryParam("q"),
		Region:     c.QueryParam("region"),
		HospitalID: c.QueryParam("hospital_id"),
		Specialty:  c.QueryParam("specialty"),
	}
	doctors, err := h.svc.ListDoctors(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(doctors, pagination.FromContext(c)))
}

func (h *Handler) DoctorFacets(c echo.Context) error {
	facets, err := h.svc.DoctorFacets(c.Request().Context(), c.QueryParam("region"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, facets)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.svc.GetDoctor(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var in DoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.CreateDoctor(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	var in DoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) PatchDoctor(c echo.Context) error {
	var p DoctorPatch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.PatchDoctor(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	if err := h.svc.DeleteDoctor(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Hospitals --

func (h *Handler) ListHospitals(c echo.Context) error {
	f := HospitalFilter{
		Query:           c.QueryParam("q"),
		City:            c.QueryParam("city"),
		HealthAuthority: c.QueryParam("health_authority"),
	}
	rows, err := h.svc.ListHospitals(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(rows, pagination.FromContext(c)))
}

func (h *Handler) HospitalFacets(c echo.Context) error {
	facets, err := h.svc.HospitalFacets(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, facets)
}

func (h *Handler) GetHospital(c echo.Context) error {
	hosp, err := h.svc.GetHospital(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) HospitalDoctors(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.svc.GetHospital(ctx, c.Param("id")); err != nil {
		return httpError(err)
	}
	doctors, err := h.svc.DoctorsByHospital(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) CreateHospital(c echo.Context) error {
	var in HospitalInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	hosp, err := h.svc.CreateHospital(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, hosp)
}

func (h *Handler) UpdateHospital(c echo.Context) error {
	var in HospitalInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	hosp, err := h.svc.UpdateHospital(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) ToggleSurgicalWorkflows(c echo.Context) error {
	hosp, err := h.svc.ToggleSurgicalWorkflows(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) DeleteHospital(c echo.Context) error {
	if err := h.svc.DeleteHospital(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
