// controllers/invoice.go
package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"salonpro-billing/models"
	"salonpro-billing/repository"
	"salonpro-billing/services"
	"salonpro-billing/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// InvoiceController exposes the invoice lifecycle and payment ledger
type InvoiceController struct {
	Invoices *services.InvoiceService
}

type reasonInput struct {
	Reason string `json:"reason"`
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter.
func parseDateQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+" date, expected YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}

func (ic *InvoiceController) CreateInvoice(c *gin.Context) {
	var input services.CreateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	input.CreatedBy = utils.CurrentUserID(c)

	invoice, err := ic.Invoices.Create(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (ic *InvoiceController) GetInvoices(c *gin.Context) {
	filter := repository.InvoiceFilter{
		Status: models.InvoiceStatus(c.Query("status")),
	}
	for name, dst := range map[string]**uuid.UUID{"stylistId": &filter.StylistID, "customerId": &filter.CustomerID} {
		if raw := c.Query(name); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+" format")
				return
			}
			*dst = &id
		}
	}
	from, ok := parseDateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseDateQuery(c, "to")
	if !ok {
		return
	}
	filter.From = from
	if to != nil {
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	invoices, err := ic.Invoices.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (ic *InvoiceController) GetInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	invoice, err := ic.Invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// DeleteInvoice only removes drafts
func (ic *InvoiceController) DeleteInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ic.Invoices.DeleteDraft(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted successfully"})
}

func (ic *InvoiceController) FinalizeInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	invoice, err := ic.Invoices.Finalize(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (ic *InvoiceController) SendInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	invoice, err := ic.Invoices.MarkSent(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (ic *InvoiceController) CancelInvoice(c *gin.Context) {
	ic.withReason(c, ic.Invoices.Cancel)
}

func (ic *InvoiceController) VoidInvoice(c *gin.Context) {
	ic.withReason(c, ic.Invoices.Void)
}

func (ic *InvoiceController) WriteOffInvoice(c *gin.Context) {
	ic.withReason(c, ic.Invoices.WriteOff)
}

type reasonAction func(ctx context.Context, id uuid.UUID, reason string) (*models.Invoice, error)

func (ic *InvoiceController) withReason(c *gin.Context, action reasonAction) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input reasonInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}
	}
	invoice, err := action(c.Request.Context(), id, input.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (ic *InvoiceController) RecordPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input services.PaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	input.ProcessedBy = utils.CurrentUserID(c)

	invoice, err := ic.Invoices.RecordPayment(c.Request.Context(), id, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// CompleteStockDeduction retries stock lines skipped at finalization
func (ic *InvoiceController) CompleteStockDeduction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	invoice, err := ic.Invoices.CompleteStockDeduction(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}
