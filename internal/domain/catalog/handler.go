package catalog

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
	api.GET("/products", h.ListProducts)
	api.GET("/products/categories", h.Categories)
	api.GET("/products/:id", h.GetProduct)
	api.GET("/products/:id/compatible", h.Compatible)
}

func (h *Handler) ListProducts(c echo.Context) error {
	f := ProductFilter{Query: c.QueryParam("q"), Category: c.QueryParam("category")}
	products, err := h.svc.ListProducts(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.Respond(products, pagination.FromContext(c)))
}

func (h *Handler) Categories(c echo.Context) error {
	counts, err := h.svc.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, counts)
}

func (h *Handler) GetProduct(c echo.Context) error {
	p, err := h.svc.GetProduct(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Compatible(c echo.Context) error {
	products, err := h.svc.Compatible(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}
