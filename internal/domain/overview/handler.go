package overview

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/overview", h.Dashboard)
	api.GET("/doctors/:id/profile", h.DoctorProfile)
	api.GET("/products/:id/detail", h.ProductDetail)
}

func respond(c echo.Context, v interface{}, err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context())
	return respond(c, d, err)
}

func (h *Handler) DoctorProfile(c echo.Context) error {
	p, err := h.svc.DoctorProfile(c.Request().Context(), c.Param("id"))
	return respond(c, p, err)
}

func (h *Handler) ProductDetail(c echo.Context) error {
	p, err := h.svc.ProductDetail(c.Request().Context(), c.Param("id"))
	return respond(c, p, err)
}
