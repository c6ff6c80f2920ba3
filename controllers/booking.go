// controllers/booking.go
package controllers

import (
	"net/http"
	"time"

	"salonpro-billing/services"
	"salonpro-billing/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingController struct {
	Bookings *services.BookingService
}

// CheckConflict answers whether a slot is free for a stylist
func (bc *BookingController) CheckConflict(c *gin.Context) {
	stylistID, err := uuid.Parse(c.Query("stylistId"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid stylistId format")
		return
	}
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid start time, expected RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid end time, expected RFC3339")
		return
	}
	var exclude *uuid.UUID
	if raw := c.Query("excludeBookingId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid excludeBookingId format")
			return
		}
		exclude = &id
	}

	conflict, err := bc.Bookings.FindConflict(c.Request.Context(), stylistID, start, end, exclude)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if conflict == nil {
		c.JSON(http.StatusOK, gin.H{"conflict": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conflict":     true,
		"bookingId":    conflict.ID,
		"customerName": conflict.CustomerName(),
		"start":        conflict.AssignedStartTime,
		"end":          conflict.AssignedEndTime,
	})
}

func (bc *BookingController) AssignTime(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input services.TimeAssignment
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	booking, err := bc.Bookings.AssignTime(c.Request.Context(), id, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (bc *BookingController) CompleteBooking(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	booking, err := bc.Bookings.Complete(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
