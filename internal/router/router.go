package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/weiwangfds/docuvault/config"
	"github.com/weiwangfds/docuvault/internal/handler"
	"github.com/weiwangfds/docuvault/internal/middleware"
	backupservice "github.com/weiwangfds/docuvault/internal/service/backup"
	documentservice "github.com/weiwangfds/docuvault/internal/service/document"
	quotaservice "github.com/weiwangfds/docuvault/internal/service/quota"
	statsservice "github.com/weiwangfds/docuvault/internal/service/stats"
)

// Router wires the HTTP surface to the vault services.
type Router struct {
	engine    *gin.Engine
	db        *gorm.DB
	documents documentservice.DocumentService
}

// NewRouter builds the services and the gin engine.
func NewRouter(loggerMiddleware *middleware.LoggerMiddleware, db *gorm.DB, cfg *config.Config) (*Router, error) {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	backupService, err := backupservice.NewBackupService(db, cfg.Backup, cfg.Storage.BackupsPath)
	if err != nil {
		return nil, err
	}
	quotaService := quotaservice.NewQuotaService(db, cfg.Quota)
	statsService := statsservice.NewStatsService(db)
	documentService, err := documentservice.NewDocumentService(
		db, cfg.Compression, cfg.Storage, cfg.Cache,
		backupService, quotaService, statsService,
	)
	if err != nil {
		return nil, err
	}

	documentHandler := handler.NewDocumentHandler(documentService, quotaService, statsService)
	maintenanceHandler := handler.NewMaintenanceHandler(documentService)

	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware.RequestID())
	engine.Use(loggerMiddleware.RequestLogger())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	engine.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(500, gin.H{"status": "degraded", "message": "database unreachable"})
			return
		}
		c.JSON(200, gin.H{"status": "ok", "message": "Service is running"})
	})

	api := engine.Group("/api/v1")
	{
		documents := api.Group("/documents")
		{
			documents.POST("", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.GET("/:id/download", documentHandler.Download)
			documents.GET("/:id/status", documentHandler.Status)
			documents.PUT("/:id/favorite", documentHandler.Favorite)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		quota := api.Group("/quota")
		{
			quota.GET("", documentHandler.Quota)
			quota.POST("/recalculate", documentHandler.RecalculateQuota)
		}

		api.GET("/stats/compression", documentHandler.CompressionStats)

		maintenance := api.Group("/maintenance")
		{
			maintenance.POST("/sweep-backups", maintenanceHandler.SweepBackups)
			maintenance.POST("/sweep-cache", maintenanceHandler.SweepCache)
		}
	}

	return &Router{
		engine:    engine,
		db:        db,
		documents: documentService,
	}, nil
}

// GetEngine returns the gin engine.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// Documents returns the document service for background jobs.
func (r *Router) Documents() documentservice.DocumentService {
	return r.documents
}
