// controllers/errors.go
package controllers

import (
	"errors"
	"net/http"

	"salonpro-billing/services"
	"salonpro-billing/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidTransition, services.KindConflict, services.KindInsufficientStock:
		return http.StatusConflict
	case services.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError renders a service error. Conflicts carry the
// booking that holds the slot.
func respondServiceError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status := statusForKind(kind)

	var conflict *services.ConflictError
	if errors.As(err, &conflict) {
		c.AbortWithStatusJSON(status, gin.H{
			"error":                err.Error(),
			"kind":                 kind,
			"conflictingBookingId": conflict.BookingID,
			"customerName":         conflict.CustomerName,
		})
		return
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		utils.RespondWithError(c, status, "Internal server error")
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": kind})
}
