package routes

import (
	"net/http"

	"salonpro-billing/config"
	"salonpro-billing/controllers"
	"salonpro-billing/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Invoices    *controllers.InvoiceController
	Bookings    *controllers.BookingController
	Commissions *controllers.CommissionController
}

func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Use(config.PerformanceLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware(cfg.JWTSecret))
	{
		// Invoice routes
		invoices := api.Group("/invoices")
		{
			invoices.POST("", h.Invoices.CreateInvoice)
			invoices.GET("", h.Invoices.GetInvoices)
			invoices.GET("/:id", h.Invoices.GetInvoice)
			invoices.DELETE("/:id", h.Invoices.DeleteInvoice)
			invoices.POST("/:id/finalize", h.Invoices.FinalizeInvoice)
			invoices.POST("/:id/send", h.Invoices.SendInvoice)
			invoices.POST("/:id/cancel", h.Invoices.CancelInvoice)
			invoices.POST("/:id/void", h.Invoices.VoidInvoice)
			invoices.POST("/:id/write-off", h.Invoices.WriteOffInvoice)
			invoices.POST("/:id/payments", h.Invoices.RecordPayment)
			invoices.POST("/:id/stock-deduction", h.Invoices.CompleteStockDeduction)
		}

		// Booking routes
		bookings := api.Group("/bookings")
		{
			bookings.GET("/conflicts", h.Bookings.CheckConflict)
			bookings.PUT("/:id/assign", h.Bookings.AssignTime)
			bookings.POST("/:id/complete", h.Bookings.CompleteBooking)
		}

		// Commission routes
		commissions := api.Group("/commissions")
		{
			commissions.GET("/report", h.Commissions.GetReport)
			commissions.GET("/report/export", h.Commissions.ExportReport)
			commissions.POST("/approve", h.Commissions.Approve)
			commissions.POST("/mark-paid", h.Commissions.MarkPaid)
		}
	}

	return r
}
