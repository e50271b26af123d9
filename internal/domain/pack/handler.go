package pack

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/batches/:id", h.GetBatch)
	api.GET("/batches/:id/pending-packs", h.ListPendingPacks)
	api.GET("/packs/progress-filling-left", h.ListProgressFillingLeft)
	api.POST("/templates/schedule-start", h.ScheduleStart)
}

func (h *Handler) GetBatch(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid batch id")
	}
	b, err := h.svc.GetBatch(c.Request().Context(), id)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "batch not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListPendingPacks(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid batch id")
	}
	packs, err := h.svc.ListPendingByBatch(c.Request().Context(), id)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "batch not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, packs)
}

func (h *Handler) ListProgressFillingLeft(c echo.Context) error {
	ids, err := h.svc.ListProgressFillingLeft(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ids == nil {
		ids = []int64{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"pack_ids": ids})
}

type scheduleStartRequest struct {
	PatientID int64      `json:"patient_id"`
	FileID    int64      `json:"file_id"`
	StartDate *time.Time `json:"start_date,omitempty"`
}

func (h *Handler) ScheduleStart(c echo.Context) error {
	var req scheduleStartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	decision, err := h.svc.ScheduleStart(c.Request().Context(),
		TemplateKey{PatientID: req.PatientID, FileID: req.FileID}, req.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status := http.StatusOK
	if decision.Status == ScheduleRejected {
		status = http.StatusConflict
	}
	return c.JSON(status, decision)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
