package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"backoffice-backend/controllers"
	"backoffice-backend/database"
	"backoffice-backend/ledger"
	"backoffice-backend/middlewares"
	"backoffice-backend/recon"
	"backoffice-backend/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// reconConfig builds the matching policy from env, starting from defaults.
func reconConfig() recon.Config {
	cfg := recon.DefaultConfig()
	cfg.AmountTolerance = int64(envInt("RECON_AMOUNT_TOLERANCE", int(cfg.AmountTolerance)))
	cfg.MinScore = envFloat("RECON_MIN_SCORE", cfg.MinScore)
	cfg.RecencyWindow = time.Duration(envInt("RECON_RECENCY_DAYS", 7)) * 24 * time.Hour
	cfg.LockWait = time.Duration(envInt("RECON_LOCK_WAIT_MS", 2000)) * time.Millisecond
	return cfg
}

func main() {
	// ---- Database (public)
	database.Connect()
	database.AutoMigrate()

	// ---- Domain wiring
	store := ledger.NewStore(database.DB)
	engine := recon.NewEngine(store, reconConfig())
	controllers.Setup(store, engine)

	// ---- Outbox dispatcher (background goroutine beside the server)
	dispatchInterval := time.Duration(envInt("OUTBOX_INTERVAL_SECONDS", 5)) * time.Second
	dispatcher := ledger.NewDispatcher(store, database.TenantSchemas, dispatchInterval)
	dispatcher.Register("payment.reconciled", func(ctx context.Context, tenantID string, payload []byte) error {
		log.Printf("notify [%s] payment.reconciled: %s", tenantID, payload)
		return nil
	})
	dispatcher.Register("payment.applied", func(ctx context.Context, tenantID string, payload []byte) error {
		log.Printf("notify [%s] payment.applied: %s", tenantID, payload)
		return nil
	})
	dispatcher.Register("invoice.sent", func(ctx context.Context, tenantID string, payload []byte) error {
		log.Printf("notify [%s] invoice.sent: %s", tenantID, payload)
		return nil
	})
	dispatcher.Register("invoice.reminder", func(ctx context.Context, tenantID string, payload []byte) error {
		log.Printf("notify [%s] invoice.reminder: %s", tenantID, payload)
		return nil
	})
	dispatcher.Register("quote.accepted", func(ctx context.Context, tenantID string, payload []byte) error {
		log.Printf("notify [%s] quote.accepted: %s", tenantID, payload)
		return nil
	})
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	go dispatcher.Run(dispatchCtx)

	// ---- Dunning sweep for overdue invoices
	dunInterval := time.Duration(envInt("DUNNING_INTERVAL_MINUTES", 60)) * time.Minute
	dunner := ledger.NewDunner(store, database.TenantSchemas, dunInterval)
	go dunner.Run(dispatchCtx)

	// ---- Limits (configurable via env)
	// Fiber default BodyLimit is 4 * 1024 * 1024 bytes if unset (per docs).
	// We allow overriding with BODY_LIMIT_BYTES or BODY_LIMIT_MB.
	bodyLimitBytes := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimitBytes <= 0 {
		bodyLimitBytes = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    bodyLimitBytes,
	})

	// ---- CORS
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Tenant-Schema",
	}))

	// ---- Global rate limiter (applies to all routes; tune via env)
	rlMax := envInt("RATE_LIMIT_MAX", 60)                                            // default 60 reqs
	rlWindow := time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second // default 60s window
	app.Use(limiter.New(limiter.Config{
		Max:        rlMax,
		Expiration: rlWindow,
		// Default KeyGenerator = client IP; default 429 handler is fine.
	}))

	// ---- Routes
	routes.Register(app)

	// ---- Start
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := app.Listen(":" + port); err != nil {
		panic(err)
	}
	fmt.Println("API server started on port", port)
}
