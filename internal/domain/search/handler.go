package search

import (
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
	api.GET("/search", h.Search)
	api.GET("/search/recent", h.Recent)
	api.POST("/search/recent", h.Record)
	api.DELETE("/search/recent", h.ClearRecent)
}

func (h *Handler) Search(c echo.Context) error {
	res, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Recent(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Recent(c.Request().Context()))
}

func (h *Handler) Record(c echo.Context) error {
	var body struct {
		Query string `json:"query"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	list, err := h.svc.Record(c.Request().Context(), body.Query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ClearRecent(c echo.Context) error {
	if err := h.svc.ClearRecent(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
