package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/careloop/careloop/pkg/errors"
)

// respondError maps application errors to HTTP statuses without leaking
// internal details. Unknown errors collapse to a generic 500.
func respondError(c *gin.Context, err error) {
	var appErr *domainErrors.AppError
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": domainErrors.CodeInternal, "message": "internal error"},
		})
		return
	}

	status := http.StatusInternalServerError
	message := appErr.Message
	switch appErr.Code {
	case domainErrors.CodeInvalidInput:
		status = http.StatusBadRequest
	case domainErrors.CodeNotFound:
		status = http.StatusNotFound
	case domainErrors.CodeConflict:
		status = http.StatusConflict
	case domainErrors.CodeServiceUnavail:
		status = http.StatusServiceUnavailable
	default:
		message = "internal error"
	}

	c.JSON(status, gin.H{
		"error": gin.H{"code": appErr.Code, "message": message},
	})
}
