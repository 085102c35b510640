package middleware

import (
	"log/slog"
	"net/http"

	"github.com/arnabghosh/compute-matcher/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// ErrorHandlerMiddleware logs errors attached by handlers and writes a
// generic 500 response if the handler did not respond itself
func ErrorHandlerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()

		logger.Error("Request error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, dto.NewError("Internal Server Error", err.Error()))
		}
	}
}
