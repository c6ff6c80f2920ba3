// controllers/commission.go
package controllers

import (
	"fmt"
	"net/http"
	"time"

	"salonpro-billing/services"
	"salonpro-billing/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CommissionController handles stylist commission reporting and payouts
type CommissionController struct {
	Commissions *services.CommissionService
}

type commissionBatchInput struct {
	InvoiceIDs []uuid.UUID `json:"invoiceIds" binding:"required,min=1"`
}

type markPaidInput struct {
	InvoiceIDs []uuid.UUID `json:"invoiceIds" binding:"required,min=1"`
	Reference  string      `json:"reference" binding:"required"`
	PaidAt     *time.Time  `json:"paidAt"`
}

// reportRange reads stylistId, from and to. The range defaults to the
// current month.
func reportRange(c *gin.Context) (uuid.UUID, time.Time, time.Time, bool) {
	stylistID, err := uuid.Parse(c.Query("stylistId"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid stylistId format")
		return uuid.Nil, time.Time{}, time.Time{}, false
	}

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, -1)

	from, ok := parseDateQuery(c, "from")
	if !ok {
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	to, ok := parseDateQuery(c, "to")
	if !ok {
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}
	return stylistID, start, end, true
}

func (cc *CommissionController) GetReport(c *gin.Context) {
	stylistID, start, end, ok := reportRange(c)
	if !ok {
		return
	}
	report, err := cc.Commissions.GetReport(c.Request.Context(), stylistID, start, end)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (cc *CommissionController) ExportReport(c *gin.Context) {
	stylistID, start, end, ok := reportRange(c)
	if !ok {
		return
	}
	data, err := cc.Commissions.ExportReport(c.Request.Context(), stylistID, start, end)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	filename := fmt.Sprintf("commission-%s-%s.xlsx", start.Format(dateLayout), end.Format(dateLayout))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (cc *CommissionController) Approve(c *gin.Context) {
	var input commissionBatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if err := cc.Commissions.Approve(c.Request.Context(), input.InvoiceIDs, utils.CurrentUserID(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approved": len(input.InvoiceIDs)})
}

func (cc *CommissionController) MarkPaid(c *gin.Context) {
	var input markPaidInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	var paidAt time.Time
	if input.PaidAt != nil {
		paidAt = *input.PaidAt
	}
	if err := cc.Commissions.MarkPaid(c.Request.Context(), input.InvoiceIDs, input.Reference, paidAt); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paid": len(input.InvoiceIDs)})
}
