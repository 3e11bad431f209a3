package http

import (
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/auth"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/guard"
	"github.com/dkeye/society/internal/service"
	"github.com/dkeye/society/internal/storage"
)

var validationErrors = []error{
	domain.ErrNameEmpty,
	domain.ErrNameTooLong,
	domain.ErrEmailInvalid,
	domain.ErrUnknownRole,
	domain.ErrUnknownFunction,
	domain.ErrUnknownSeverity,
	domain.ErrTitleEmpty,
	domain.ErrTitleTooLong,
	domain.ErrMessageEmpty,
	domain.ErrMessageTooLong,
	domain.ErrBodyEmpty,
	service.ErrPasswordTooShort,
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		c.AbortWithStatus(nethttp.StatusUnauthorized)
	case errors.Is(err, service.ErrForbidden):
		c.AbortWithStatusJSON(nethttp.StatusForbidden, gin.H{"error": guard.AccessDeniedNotice})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.AbortWithStatusJSON(nethttp.StatusUnauthorized, gin.H{"error": "invalid email or password"})
	case errors.Is(err, storage.ErrNotFound):
		c.AbortWithStatusJSON(nethttp.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, storage.ErrConflict):
		c.AbortWithStatusJSON(nethttp.StatusConflict, gin.H{"error": err.Error()})
	case isValidation(err):
		c.AbortWithStatusJSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.Request.URL.Path).Msg("request failed")
		c.AbortWithStatusJSON(nethttp.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(nethttp.StatusBadRequest, gin.H{"error": msg})
}
