package analysis

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fillsched/fillsched/internal/platform/auth"
	"github.com/fillsched/fillsched/internal/platform/db"
)

type Handler struct {
	demand  *DemandService
	builder *Builder
	subst   *Substitution
}

func NewHandler(demand *DemandService, builder *Builder, subst *Substitution) *Handler {
	return &Handler{demand: demand, builder: builder, subst: subst}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/canister-demand", h.CanisterDemand)
	api.POST("/batch-demand", h.BatchDemand)

	api.POST("/batches/:id/analysis", h.SaveAnalysis)
	api.PUT("/batches/:id/analysis", h.RebuildAnalysis)
	api.DELETE("/batches/:id/analysis", h.DeleteAnalysis)
	api.GET("/batches/:id/skipped-drugs", h.SkippedDrugs)

	api.POST("/canisters/replace", h.ReplaceCanisters)
	api.POST("/canisters/:id/revert-out-of-stock", h.RevertOutOfStock)
	api.POST("/canisters/:id/revert-sole-provider", h.RevertSoleProvider)

	api.POST("/analyses/mark-manual-skip", h.MarkManualSkip)
	api.GET("/packs/manual-skipped", h.ListManualSkippedPacks)
}

type demandRequest struct {
	CanisterIDs    []int64 `json:"canister_ids"`
	ExtraPackIDs   []int64 `json:"extra_pack_ids,omitempty"`
	ExcludePackIDs []int64 `json:"exclude_pack_ids,omitempty"`
	Auto           bool    `json:"auto"`
}

func (h *Handler) CanisterDemand(c echo.Context) error {
	var req demandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var (
		sums map[int64]int64
		err  error
	)
	if req.Auto {
		sums, err = h.demand.RequiredQuantitiesAuto(c.Request().Context(), req.CanisterIDs, req.ExcludePackIDs)
	} else {
		sums, err = h.demand.RequiredQuantities(c.Request().Context(), req.CanisterIDs, req.ExtraPackIDs)
	}
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, sums)
}

type batchDemandRequest struct {
	BatchIDs []int64 `json:"batch_ids"`
}

func (h *Handler) BatchDemand(c echo.Context) error {
	var req batchDemandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sums, err := h.demand.UsedQuantities(c.Request().Context(), req.BatchIDs)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, sums)
}

type saveAnalysisRequest struct {
	Records     []SlotRecord `json:"records"`
	ManualSlots []int64      `json:"manual_slots,omitempty"`
}

func (h *Handler) SaveAnalysis(c echo.Context) error {
	batchID, err := batchParam(c)
	if err != nil {
		return err
	}
	var req saveAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	manual := make(map[int64]bool, len(req.ManualSlots))
	for _, id := range req.ManualSlots {
		manual[id] = true
	}
	if err := h.builder.SaveAnalysis(c.Request().Context(), batchID, req.Records, manual); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) RebuildAnalysis(c echo.Context) error {
	batchID, err := batchParam(c)
	if err != nil {
		return err
	}
	var req saveAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.builder.RebuildAnalysis(c.Request().Context(), batchID, req.Records); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) DeleteAnalysis(c echo.Context) error {
	batchID, err := batchParam(c)
	if err != nil {
		return err
	}
	if err := h.builder.DeleteAnalysisForBatch(c.Request().Context(), batchID); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SkippedDrugs(c echo.Context) error {
	batchID, err := batchParam(c)
	if err != nil {
		return err
	}
	groups, err := h.builder.PackWiseSkippedDrugs(c.Request().Context(), batchID)
	if err != nil {
		return storeError(err)
	}
	if groups == nil {
		groups = []SkippedDrugGroup{}
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *Handler) ReplaceCanisters(c echo.Context) error {
	var req ReplaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == 0 {
		req.UserID = auth.UserID(c)
	}
	packs, err := h.subst.ReplaceCanisters(c.Request().Context(), req)
	if err != nil {
		return storeError(err)
	}
	if packs == nil {
		packs = []int64{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"packs_affected": packs})
}

type revertRequest struct {
	CompanyID int64 `json:"company_id"`
	DeviceID  int64 `json:"device_id"`
	UserID    int64 `json:"user_id"`
}

func (h *Handler) RevertOutOfStock(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid canister id")
	}
	var req revertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == 0 {
		req.UserID = auth.UserID(c)
	}
	result, err := h.subst.RevertOutOfStockSkips(c.Request().Context(), id, req.CompanyID, req.UserID)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) RevertSoleProvider(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid canister id")
	}
	var req revertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.subst.RevertSoleProviderSkips(c.Request().Context(), id, req.DeviceID)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type markManualRequest struct {
	AnalysisIDs []int64 `json:"analysis_ids"`
}

func (h *Handler) MarkManualSkip(c echo.Context) error {
	var req markManualRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.subst.MarkSkippedDueToManual(c.Request().Context(), req.AnalysisIDs); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) ListManualSkippedPacks(c echo.Context) error {
	packs, err := h.subst.ListManualSkippedPacks(c.Request().Context())
	if err != nil {
		return storeError(err)
	}
	if packs == nil {
		packs = []int64{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"pack_ids": packs})
}

func batchParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid batch id")
	}
	return id, nil
}

// storeError maps the store taxonomy onto HTTP statuses.
func storeError(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, db.ErrPrecondition):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, db.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
