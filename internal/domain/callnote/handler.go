package callnote

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id/call-notes", h.ListForDoctor)
	api.GET("/doctors/:id/call-notes/recent", h.Recent)
	api.POST("/doctors/:id/call-notes", h.Add)
	api.POST("/call-notes/load", h.Load)
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

func (h *Handler) ListForDoctor(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.ForDoctor(c.Request().Context(), c.Param("id")))
}

func (h *Handler) Recent(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	return c.JSON(http.StatusOK, h.svc.Recent(c.Request().Context(), c.Param("id"), limit))
}

func (h *Handler) Add(c echo.Context) error {
	var in NoteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	note, err := h.svc.Add(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, note)
}

// Load merges the workspace's persisted notes. Reads do this on first use,
// so calling it is only needed to pick up notes written by another replica.
func (h *Handler) Load(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Load(c.Request().Context()))
}
