package replenish

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fillsched/fillsched/internal/platform/db"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/replenish/plan", h.Plan)
}

func (h *Handler) Plan(c echo.Context) error {
	var q Query
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	plan, err := h.svc.Plan(c.Request().Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, db.ErrPrecondition):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	if plan == nil {
		plan = []Item{}
	}
	return c.JSON(http.StatusOK, plan)
}
