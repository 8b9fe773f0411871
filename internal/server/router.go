package server

import (
	"github.com/abduss/driveingest/internal/auth"
	"github.com/abduss/driveingest/internal/blobstore"
	"github.com/abduss/driveingest/internal/config"
	"github.com/abduss/driveingest/internal/drive"
	"github.com/abduss/driveingest/internal/folder"
	"github.com/abduss/driveingest/internal/logger"
	"github.com/abduss/driveingest/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config        config.Config
	Log           *zap.Logger
	Checks        []HealthCheck
	AuthService   *auth.Service
	Accounts      *auth.Repository
	FolderService *folder.Service
	DriveService  *drive.Service
	// LocalFiles serves stored bytes when the local backend is active.
	LocalFiles *blobstore.Local
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(logger.AccessLog(log))
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps.Checks)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	if deps.LocalFiles != nil {
		registerFileRoutes(router, deps.LocalFiles)
	}

	api := router.Group("/v1")
	if deps.AuthService != nil {
		protected := api.Group("/")
		protected.Use(auth.Middleware(deps.AuthService))

		if deps.FolderService != nil {
			folder.RegisterRoutes(protected, deps.FolderService)
		}
		if deps.DriveService != nil && deps.Accounts != nil {
			drive.RegisterRoutes(protected, deps.DriveService, deps.Accounts, log)
		}
	}

	return router
}
