package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/api/dto"
	"github.com/arnabghosh/compute-matcher/internal/capability"
	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/storage"
	"github.com/gin-gonic/gin"
)

// ResourceHandler handles provider resource API requests
type ResourceHandler struct {
	resources storage.ResourceRepository
	verifier  capability.Verifier
}

// NewResourceHandler creates a new resource handler. verifier may be nil,
// in which case verification requests are rejected.
func NewResourceHandler(resources storage.ResourceRepository, verifier capability.Verifier) *ResourceHandler {
	return &ResourceHandler{
		resources: resources,
		verifier:  verifier,
	}
}

// ListResources godoc
// @Summary List resources
// @Tags resources
// @Produce json
// @Param available query bool false "Only active, non-busy resources"
// @Success 200 {object} dto.ResourceListResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/resources [get]
func (h *ResourceHandler) ListResources(c *gin.Context) {
	ctx := c.Request.Context()
	available, _ := strconv.ParseBool(c.Query("available"))

	var (
		resources []*domain.Resource
		err       error
	)
	if available {
		resources, err = h.resources.ListAvailable(ctx)
	} else {
		resources, err = h.resources.List(ctx)
	}
	if err != nil {
		respondError(c, "Failed to retrieve resources", err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResourceListResponse(resources))
}

// GetResource godoc
// @Summary Get resource by ID
// @Tags resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} dto.ResourceResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/resources/{id} [get]
func (h *ResourceHandler) GetResource(c *gin.Context) {
	r, err := h.resources.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Resource not found", err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResourceResponse(r))
}

// RegisterResource godoc
// @Summary Register a resource
// @Description Advertise a computational resource. If verification is named, the check must pass.
// @Tags resources
// @Accept json
// @Produce json
// @Param resource body dto.RegisterResourceRequest true "Resource"
// @Success 201 {object} dto.ResourceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.VerificationResponse
// @Router /api/v1/resources [post]
func (h *ResourceHandler) RegisterResource(c *gin.Context) {
	var req dto.RegisterResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewError("Invalid request", err.Error()))
		return
	}

	r, err := req.ToResource()
	if err != nil {
		respondError(c, "Invalid resource", err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.resources.GetByID(ctx, r.ID); err == nil {
		respondError(c, "Resource exists", fmt.Errorf("%w: resource %s", domain.ErrAlreadyExists, r.ID))
		return
	}

	if req.Verification != "" {
		verdict, ok := h.verify(c, r, req.Verification)
		if !ok {
			return
		}
		if !verdict.Verified {
			c.JSON(http.StatusUnprocessableEntity, verdict)
			return
		}
	}

	if err := h.resources.Store(ctx, r); err != nil {
		respondError(c, "Failed to store resource", err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToResourceResponse(r))
}

// UpdateResource godoc
// @Summary Update a resource
// @Description Partially update an advertised resource. Busy state is managed by the matcher.
// @Tags resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param update body dto.UpdateResourceRequest true "Fields to change"
// @Success 200 {object} dto.ResourceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/resources/{id} [patch]
func (h *ResourceHandler) UpdateResource(c *gin.Context) {
	var req dto.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewError("Invalid request", err.Error()))
		return
	}

	h.modify(c, "Failed to update resource", req.Apply)
}

// DeactivateResource godoc
// @Summary Withdraw a resource from matching
// @Tags resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} dto.ResourceResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/resources/{id}/deactivate [post]
func (h *ResourceHandler) DeactivateResource(c *gin.Context) {
	h.modify(c, "Failed to deactivate resource", func(r *domain.Resource) error {
		r.Active = false
		return nil
	})
}

// VerifyResource godoc
// @Summary Verify a resource's advertised capability
// @Tags resources
// @Produce json
// @Param id path string true "Resource ID"
// @Param method query string false "Verification method" Enums(benchmark, redundant, reputation)
// @Success 200 {object} dto.VerificationResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/resources/{id}/verify [post]
func (h *ResourceHandler) VerifyResource(c *gin.Context) {
	r, err := h.resources.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Resource not found", err)
		return
	}

	verdict, ok := h.verify(c, r, c.DefaultQuery("method", capability.VerifyBenchmark.String()))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, verdict)
}

func (h *ResourceHandler) verify(c *gin.Context, r *domain.Resource, methodName string) (*dto.VerificationResponse, bool) {
	if h.verifier == nil {
		c.JSON(http.StatusNotImplemented, dto.NewError("Verification unavailable", "no verifier configured"))
		return nil, false
	}

	method, err := capability.ParseVerificationMethod(methodName)
	if err != nil {
		respondError(c, "Invalid verification method", err)
		return nil, false
	}

	verdict, err := h.verifier.Verify(c.Request.Context(), r, method)
	if err != nil {
		respondError(c, "Verification failed", err)
		return nil, false
	}

	return &dto.VerificationResponse{
		ResourceID: r.ID,
		Method:     verdict.Method,
		Verified:   verdict.Verified,
		Score:      verdict.Score,
		Reason:     verdict.Reason,
		CheckedAt:  time.Now(),
	}, true
}

// modify patches the stored record in place; the busy flag stays with the
// settlement path
func (h *ResourceHandler) modify(c *gin.Context, title string, change func(*domain.Resource) error) {
	r, err := h.resources.Update(c.Request.Context(), c.Param("id"), change)
	if err != nil {
		respondError(c, title, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResourceResponse(r))
}
