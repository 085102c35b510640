package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/api/dto"
	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/storage"
	"github.com/gin-gonic/gin"
)

// DemandLifecycle moves demands through execution states
type DemandLifecycle interface {
	Start(ctx context.Context, demandID string) error
	Cancel(ctx context.Context, demandID string) error
	Complete(ctx context.Context, demandID string, success bool, actualDuration time.Duration) error
}

// DemandHandler handles demand-related API requests
type DemandHandler struct {
	demands   storage.DemandRepository
	lifecycle DemandLifecycle
}

// NewDemandHandler creates a new demand handler
func NewDemandHandler(demands storage.DemandRepository, lifecycle DemandLifecycle) *DemandHandler {
	return &DemandHandler{
		demands:   demands,
		lifecycle: lifecycle,
	}
}

// ListDemands godoc
// @Summary List demands
// @Description List computation demands, optionally filtered by status
// @Tags demands
// @Produce json
// @Param status query string false "Filter by status" Enums(pending, matching, running, completed, failed, cancelled)
// @Success 200 {object} dto.DemandListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/demands [get]
func (h *DemandHandler) ListDemands(c *gin.Context) {
	status := domain.DemandStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, dto.NewError("Invalid request", fmt.Sprintf("unknown status %q", status)))
		return
	}

	demands, err := h.demands.ListByStatus(c.Request.Context(), status)
	if err != nil {
		respondError(c, "Failed to retrieve demands", err)
		return
	}
	c.JSON(http.StatusOK, dto.ToDemandListResponse(demands))
}

// GetDemand godoc
// @Summary Get demand by ID
// @Tags demands
// @Produce json
// @Param id path string true "Demand ID"
// @Success 200 {object} dto.DemandResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/demands/{id} [get]
func (h *DemandHandler) GetDemand(c *gin.Context) {
	d, err := h.demands.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Demand not found", err)
		return
	}
	c.JSON(http.StatusOK, dto.ToDemandResponse(d))
}

// CreateDemand godoc
// @Summary Submit a demand
// @Description Submit a computation demand; it becomes eligible in the next allocation cycle
// @Tags demands
// @Accept json
// @Produce json
// @Param demand body dto.CreateDemandRequest true "Demand"
// @Success 201 {object} dto.DemandResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/demands [post]
func (h *DemandHandler) CreateDemand(c *gin.Context) {
	var req dto.CreateDemandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewError("Invalid request", err.Error()))
		return
	}

	d, err := req.ToDemand(time.Now())
	if err != nil {
		respondError(c, "Invalid demand", err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.demands.GetByID(ctx, d.ID); err == nil {
		respondError(c, "Demand exists", fmt.Errorf("%w: demand %s", domain.ErrAlreadyExists, d.ID))
		return
	}
	if err := h.demands.Store(ctx, d); err != nil {
		respondError(c, "Failed to store demand", err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToDemandResponse(d))
}

// CancelDemand godoc
// @Summary Cancel a pending demand
// @Tags demands
// @Produce json
// @Param id path string true "Demand ID"
// @Success 200 {object} dto.DemandResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/demands/{id}/cancel [post]
func (h *DemandHandler) CancelDemand(c *gin.Context) {
	h.transition(c, "Failed to cancel demand", func(id string) error {
		return h.lifecycle.Cancel(c.Request.Context(), id)
	})
}

// StartDemand godoc
// @Summary Mark a matched demand as running
// @Tags demands
// @Produce json
// @Param id path string true "Demand ID"
// @Success 200 {object} dto.DemandResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/demands/{id}/start [post]
func (h *DemandHandler) StartDemand(c *gin.Context) {
	h.transition(c, "Failed to start demand", func(id string) error {
		return h.lifecycle.Start(c.Request.Context(), id)
	})
}

// CompleteDemand godoc
// @Summary Report completion of a demand
// @Description Finishes a matched demand, releases its resource and adjusts provider reputation
// @Tags demands
// @Accept json
// @Produce json
// @Param id path string true "Demand ID"
// @Param outcome body dto.CompleteDemandRequest true "Outcome"
// @Success 200 {object} dto.DemandResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/demands/{id}/complete [post]
func (h *DemandHandler) CompleteDemand(c *gin.Context) {
	var req dto.CompleteDemandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewError("Invalid request", err.Error()))
		return
	}

	var actual time.Duration
	if req.ActualDuration != "" {
		var err error
		if actual, err = time.ParseDuration(req.ActualDuration); err != nil {
			c.JSON(http.StatusBadRequest, dto.NewError("Invalid request", "actual_duration: "+err.Error()))
			return
		}
	}

	h.transition(c, "Failed to complete demand", func(id string) error {
		return h.lifecycle.Complete(c.Request.Context(), id, req.Success, actual)
	})
}

func (h *DemandHandler) transition(c *gin.Context, title string, apply func(id string) error) {
	if h.lifecycle == nil {
		c.JSON(http.StatusNotImplemented, dto.NewError(title, "demand lifecycle is not configured"))
		return
	}

	id := c.Param("id")
	if err := apply(id); err != nil {
		respondError(c, title, err)
		return
	}

	d, err := h.demands.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, title, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToDemandResponse(d))
}
