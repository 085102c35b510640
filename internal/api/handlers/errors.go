package handlers

import (
	"errors"
	"net/http"

	"github.com/arnabghosh/compute-matcher/internal/api/dto"
	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto HTTP status codes
func respondError(c *gin.Context, title string, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error occurred"

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrDemandNotFound),
		errors.Is(err, domain.ErrResourceNotFound),
		errors.Is(err, domain.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrCycleInProgress),
		errors.Is(err, domain.ErrLockHeld):
		status, message = http.StatusConflict, err.Error()
	default:
		// Surface unexpected errors to the error middleware for logging
		_ = c.Error(err)
	}

	c.JSON(status, dto.NewError(title, message))
}
