package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/random"
	echoSwagger "github.com/swaggo/echo-swagger"

	"logitrack/internal/caching"
	"logitrack/internal/handlers"
	"logitrack/internal/jobs"
	"logitrack/internal/jobs/background"
	"logitrack/internal/ledger"
	"logitrack/internal/middleware"
	"logitrack/internal/services"
	"logitrack/internal/store"
	"logitrack/pkg/database"
)

const version = "1.0.0"

func main() {
	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.EnsureSchema(context.Background(), pool); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = random.String(32) // Generate random secret for development
		log.Printf("WARNING: Using generated JWT secret; sessions will not survive restarts")
	}
	jwksURL := os.Getenv("IDENTITY_JWKS_URL")

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	// MinIO configuration
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin"
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin"
	}
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	// Alert thresholds
	lowStockThreshold := 0
	if s := os.Getenv("LOW_STOCK_THRESHOLD"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			lowStockThreshold = v
		}
	}
	expiryDays := 0
	if s := os.Getenv("EXPIRY_ALERT_DAYS"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			expiryDays = v
		}
	}

	// Storage and core services
	documentStore := store.NewPgxStore(pool)
	stockLedger := ledger.NewLedger(documentStore)
	shipmentSvc := services.NewShipmentService(documentStore)
	cacheSvc := caching.NewRedisCacheService(redisAddr, redisPassword, redisDB)

	attachmentSvc, err := services.NewAttachmentService(minioEndpoint, minioAccessKey, minioSecretKey, useSSL)
	if err != nil {
		log.Fatalf("Failed to initialize attachment service: %v", err)
	}
	for _, bucket := range []string{services.ProductImageBucket, services.DeliveryProofsBucket} {
		if err := attachmentSvc.EnsureBucketExists(context.Background(), bucket); err != nil {
			log.Printf("WARNING: Failed to ensure bucket %s: %v", bucket, err)
		}
	}

	// Background jobs
	alertSvc := jobs.NewStockAlertService(stockLedger, lowStockThreshold, expiryDays)
	scheduler, err := background.NewJobScheduler(alertSvc, cacheSvc)
	if err != nil {
		log.Fatalf("Failed to initialize job scheduler: %v", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("Failed to stop job scheduler: %v", err)
		}
	}()

	// Auth middleware
	authMiddleware, err := middleware.NewAuthMiddleware(jwtSecret, jwksURL)
	if err != nil {
		log.Fatalf("Failed to initialize auth middleware: %v", err)
	}

	// Handlers
	authHandlers := handlers.NewAuthHandlers(documentStore, cacheSvc, jwtSecret)
	productHandlers := handlers.NewProductHandlers(stockLedger, attachmentSvc)
	shipmentHandlers := handlers.NewShipmentHandlers(shipmentSvc, attachmentSvc)
	dashboardHandlers := handlers.NewDashboardHandlers(stockLedger, shipmentSvc, cacheSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc)

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)

	// API documentation
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// API routes
	v1 := e.Group("/v1")

	// Authentication routes (no JWT required for signup/login)
	auth := v1.Group("/auth")
	auth.POST("/signup", authHandlers.Signup)
	auth.POST("/login", authHandlers.Login)
	auth.POST("/logout", authHandlers.Logout)

	// Protected routes
	protected := v1.Group("")
	protected.Use(authMiddleware.Authenticate())

	// Product and ledger routes
	protected.GET("/products", productHandlers.ListProducts)
	protected.POST("/products", productHandlers.CreateProduct)
	protected.GET("/products/search", productHandlers.SearchProducts)
	protected.GET("/products/batches", productHandlers.ListBatches)
	protected.GET("/products/batches/:batchNumber", productHandlers.GetBatch)
	protected.GET("/products/alerts/low-stock", productHandlers.GetLowStock)
	protected.GET("/products/alerts/expiring", productHandlers.GetExpiringSoon)
	protected.GET("/products/:id", productHandlers.GetProduct)
	protected.PUT("/products/:id", productHandlers.UpdateProduct)
	protected.DELETE("/products/:id", productHandlers.DeleteProduct)
	protected.POST("/products/:id/adjust", productHandlers.AdjustStock)
	protected.GET("/products/:id/movements", productHandlers.GetMovements)
	protected.POST("/products/:id/images", productHandlers.UploadProductImage)
	protected.GET("/products/:id/images/:filename/url", productHandlers.GetProductImageURL)

	// Shipment routes
	protected.GET("/shipments", shipmentHandlers.ListShipments)
	protected.POST("/shipments", shipmentHandlers.CreateShipment)
	protected.GET("/shipments/:id", shipmentHandlers.GetShipment)
	protected.PUT("/shipments/:id", shipmentHandlers.UpdateShipment)
	protected.DELETE("/shipments/:id", shipmentHandlers.DeleteShipment)
	protected.PUT("/shipments/:id/status", shipmentHandlers.UpdateShipmentStatus)
	protected.PUT("/shipments/:id/location", shipmentHandlers.UpdateShipmentLocation)
	protected.POST("/shipments/:id/proof", shipmentHandlers.UploadDeliveryProof)
	protected.GET("/shipments/:id/proof/:filename/url", shipmentHandlers.GetDeliveryProofURL)

	// Dashboard
	protected.GET("/dashboard/stats", dashboardHandlers.GetStats)

	// Start server
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Invalid port %s: %v", portStr, err)
	}

	log.Printf("Logitrack server v%s starting on port %d", version, port)

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", port)))
}
