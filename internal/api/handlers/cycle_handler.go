package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/arnabghosh/compute-matcher/internal/api/dto"
	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/scheduler"
	"github.com/gin-gonic/gin"
)

const (
	defaultCycleLimit = 20
	maxCycleLimit     = 500
)

// ReportStore reads recorded cycle reports
type ReportStore interface {
	Recent(ctx context.Context, limit int) ([]*domain.CycleReport, error)
	Get(ctx context.Context, cycleID string) (*domain.CycleReport, error)
	MatchFor(ctx context.Context, demandID string) (*domain.SettledMatch, error)
}

// CycleRunner is an in-process scheduler
type CycleRunner interface {
	RunCycle(ctx context.Context) (*domain.CycleReport, error)
	Stats() scheduler.Stats
}

// CycleHandler exposes allocation cycle history and control
type CycleHandler struct {
	reports ReportStore
	runner  CycleRunner
}

// NewCycleHandler creates a cycle handler. Either dependency may be nil.
func NewCycleHandler(reports ReportStore, runner CycleRunner) *CycleHandler {
	return &CycleHandler{reports: reports, runner: runner}
}

// ListCycles godoc
// @Summary Recent allocation cycles
// @Tags cycles
// @Produce json
// @Param limit query int false "Maximum reports" default(20)
// @Success 200 {object} dto.CycleListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/cycles [get]
func (h *CycleHandler) ListCycles(c *gin.Context) {
	if !h.requireReports(c) {
		return
	}

	limit := defaultCycleLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxCycleLimit {
			c.JSON(http.StatusBadRequest, dto.NewError("Invalid request", "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	reports, err := h.reports.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "Failed to read cycles", err)
		return
	}
	c.JSON(http.StatusOK, dto.CycleListResponse{Cycles: reports, Total: len(reports)})
}

// GetCycle godoc
// @Summary Get a cycle report
// @Tags cycles
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {object} domain.CycleReport
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/cycles/{id} [get]
func (h *CycleHandler) GetCycle(c *gin.Context) {
	if !h.requireReports(c) {
		return
	}
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Cycle not found", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetMatch godoc
// @Summary Latest match recorded for a demand
// @Tags cycles
// @Produce json
// @Param demand_id path string true "Demand ID"
// @Success 200 {object} dto.MatchResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/matches/{demand_id} [get]
func (h *CycleHandler) GetMatch(c *gin.Context) {
	if !h.requireReports(c) {
		return
	}
	m, err := h.reports.MatchFor(c.Request.Context(), c.Param("demand_id"))
	if err != nil {
		respondError(c, "Match not found", err)
		return
	}
	c.JSON(http.StatusOK, dto.ToMatchResponse(m))
}

// RunCycle godoc
// @Summary Trigger an allocation cycle now
// @Tags cycles
// @Produce json
// @Success 200 {object} domain.CycleReport
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/cycles/run [post]
func (h *CycleHandler) RunCycle(c *gin.Context) {
	if !h.requireRunner(c) {
		return
	}
	report, err := h.runner.RunCycle(c.Request.Context())
	if err != nil {
		respondError(c, "Cycle failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SchedulerStats godoc
// @Summary Scheduler metrics snapshot
// @Tags cycles
// @Produce json
// @Success 200 {object} scheduler.Stats
// @Router /api/v1/scheduler/stats [get]
func (h *CycleHandler) SchedulerStats(c *gin.Context) {
	if !h.requireRunner(c) {
		return
	}
	c.JSON(http.StatusOK, h.runner.Stats())
}

func (h *CycleHandler) requireReports(c *gin.Context) bool {
	if h.reports == nil {
		c.JSON(http.StatusNotImplemented, dto.NewError("Audit log unavailable", "cycle reports are not recorded"))
		return false
	}
	return true
}

func (h *CycleHandler) requireRunner(c *gin.Context) bool {
	if h.runner == nil {
		c.JSON(http.StatusNotImplemented, dto.NewError("Scheduler unavailable", "no scheduler runs in this process"))
		return false
	}
	return true
}
