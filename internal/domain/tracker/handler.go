package tracker

import (
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
	api.GET("/batches/:id/changes", h.ListByBatch)
}

func (h *Handler) ListByBatch(c echo.Context) error {
	batchID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || batchID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid batch id")
	}
	entries, err := h.svc.ListByBatch(c.Request().Context(), batchID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}
