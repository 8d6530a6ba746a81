package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/allvalue/taplink/pkg/taplink/admin"
	"github.com/allvalue/taplink/pkg/taplink/ai"
	"github.com/allvalue/taplink/pkg/taplink/auth"
	"github.com/allvalue/taplink/pkg/taplink/content"
	"github.com/allvalue/taplink/pkg/taplink/database"
	"github.com/allvalue/taplink/pkg/taplink/issuer"
	"github.com/allvalue/taplink/pkg/taplink/metrics"
	"github.com/allvalue/taplink/pkg/taplink/models"
	"github.com/allvalue/taplink/pkg/taplink/resolve"
	"github.com/allvalue/taplink/pkg/taplink/shops"
	"github.com/allvalue/taplink/pkg/taplink/social"
	"github.com/allvalue/taplink/pkg/taplink/store"
	"github.com/allvalue/taplink/pkg/taplink/tags"
	"github.com/allvalue/taplink/pkg/taplink/token"
	"github.com/allvalue/taplink/pkg/taplink/visits"
)

func main() {
	// Get database path from environment or use default
	dbPath := os.Getenv("TAPLINK_DB_PATH")
	if dbPath == "" {
		dbPath = "taplink.db"
	}

	// Connect to database
	if err := database.Connect(dbPath); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Create default admin user if no admin exists
	if err := ensureAdminExists(); err != nil {
		log.Fatalf("Failed to ensure admin user exists: %v", err)
	}

	// Get base URL from environment or use default
	baseURL := os.Getenv("TAPLINK_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db := database.GetDB()
	codec := token.NewCodec(baseURL)
	tagStore := store.NewGormTagStore(db)
	tagIssuer := issuer.New(tagStore, codec, logger)
	recorder := visits.NewRecorder(db)
	resolver := resolve.NewService(db, tagStore, recorder, logger)
	aggregator := metrics.NewAggregator(db, logger)

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "taplink",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api.Group("/auth"))

		// Tag lifecycle routes (protected)
		tagsHandler := tags.NewHandler(tagIssuer, tagStore)
		tagsHandler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		// Shop overview and dashboard routes (protected)
		shopsHandler := shops.NewHandler(db, aggregator)
		shopsHandler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		// AI proxy routes (protected, rate limited per client)
		aiHandler := ai.NewHandler(os.Getenv("AI_API_KEY"), aiEndpoint(), ai.NewClientLimiter(1, 5), logger)
		aiHandler.RegisterRoutes(api.Group("/ai", auth.AuthMiddleware()))

		// Social publishing routes (protected)
		socialHandler := social.NewHandler(baseURL, logger)
		socialHandler.RegisterRoutes(api.Group("/social", auth.AuthMiddleware()))

		// Admin routes (admin role required)
		adminHandler := admin.NewHandler(db, codec)
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.RequireAdmin())
		adminHandler.RegisterRoutes(adminGroup)
	}

	// Public content submissions
	contentHandler := content.NewHandler(db, tagStore)
	contentHandler.RegisterRoutes(r)

	// Resolution routes (public, must be registered LAST to avoid conflicts)
	resolveHandler := resolve.NewHandler(resolver)
	resolveHandler.RegisterRoutes(r)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting TapLink server on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func aiEndpoint() string {
	endpoint := os.Getenv("AI_API_ENDPOINT")
	if endpoint == "" {
		endpoint = "https://api.deepseek.com/chat/completions"
	}
	return endpoint
}

// ensureAdminExists creates a default admin user if no admin exists in the
// database.
func ensureAdminExists() error {
	db := database.GetDB()

	// Check if any admin user exists
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil // Admin already exists
	}

	password := os.Getenv("TAPLINK_ADMIN_PASSWORD")
	if password == "" {
		password = "changeme"
	}
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        "admin@taplink.local",
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	log.Printf("Created default admin user: admin@taplink.local")
	return nil
}
