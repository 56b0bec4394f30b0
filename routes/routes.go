package routes

import (
	"github.com/gofiber/fiber/v2"

	"backoffice-backend/controllers"
	"backoffice-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Provider callbacks are unauthenticated; tenant comes from the
	// X-Tenant-Schema header and replays are idempotent by design.
	api.Post("/webhooks/:provider", controllers.PaymentWebhook)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard for client retries of mutating endpoints
	protected.Use(middlewares.Idempotency())

	// Per-request tenant transaction; handlers read it via GetTenantDB(c).
	// After Idempotency so stored responses survive a handler rollback.
	protected.Use(middlewares.TenantTx())

	// Customers
	protected.Post("/customer", controllers.CreateCustomer)
	protected.Get("/customers", controllers.GetCustomers)
	protected.Get("/customer/:id", controllers.GetCustomer)
	protected.Put("/customer/:id", controllers.UpdateCustomer)

	// Vendors
	protected.Post("/vendor", controllers.CreateVendor)
	protected.Get("/vendors", controllers.GetVendors)
	protected.Put("/vendor/:id", controllers.UpdateVendor)

	// Articles
	protected.Post("/article", controllers.CreateArticles) // batch create
	protected.Get("/articles", controllers.GetArticles)
	protected.Put("/articles/:id", controllers.UpdateArticle)

	// Quotes
	protected.Post("/quote", controllers.CreateQuote)
	protected.Get("/quotes", controllers.GetQuotes)
	protected.Get("/quote/:id", controllers.GetQuote)
	protected.Put("/quotes/:id/accept", controllers.AcceptQuote)
	protected.Put("/quotes/:id/reject", controllers.RejectQuote)

	// Invoices
	protected.Post("/invoice", controllers.CreateInvoice)
	protected.Get("/invoices", controllers.GetInvoices)
	protected.Get("/invoice/:id", controllers.GetInvoice)
	protected.Put("/invoices/:id/send", controllers.SendInvoice)
	protected.Put("/invoices/:id/void", controllers.VoidInvoice)

	// Payments
	protected.Post("/invoices/:id/payments", controllers.CreatePayment)
	protected.Get("/invoices/:id/payments", controllers.ListInvoicePayments)
	protected.Get("/payments/unapplied", controllers.ListUnappliedPayments)

	// Reporting
	protected.Get("/dashboard/cash-pulse", controllers.CashPulse)
	protected.Get("/audit", controllers.GetAuditRecords)
}
