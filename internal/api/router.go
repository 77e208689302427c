package api

import (
	"github.com/gin-gonic/gin"
	"github.com/smart-audit/backend/internal/api/handler"
	"github.com/smart-audit/backend/internal/api/middleware"
	"github.com/smart-audit/backend/internal/config"
	"github.com/smart-audit/backend/internal/logger"
	"github.com/smart-audit/backend/internal/repository"
	"github.com/smart-audit/backend/internal/service"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	documents *service.DocumentService,
	jobs *repository.JobRepository,
	cfg *config.Config,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	documentHandler := handler.NewDocumentHandler(documents, jobs)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Configuration summary
	r.GET("/config", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"app_name": "Smart Audit Agent",
			"mode":     cfg.Server.Mode,
		})
	})

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.POST("/upload", documentHandler.Upload)
			documents.GET("/jobs", documentHandler.ListJobs)
			documents.GET("/jobs/:id", documentHandler.GetJob)
			documents.GET("/ledgers", documentHandler.GetLedgers)
			documents.GET("/financial-years", documentHandler.GetFinancialYears)
		}
	}

	return r
}
