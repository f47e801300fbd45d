package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/controllers"
	"github.com/kendall-kelly/taller-reparaciones/middleware"
	"github.com/kendall-kelly/taller-reparaciones/services"
	"github.com/kendall-kelly/taller-reparaciones/views"
	"go.uber.org/zap"
)

// Downloads are already compressed media or documents.
var uncompressedPaths = []string{
	`^/reparaciones/\d+/media/`,
	`^/presupuestos/\d+/descargar/`,
	`^/reparaciones/\d+/factura-final/descargar/`,
}

// Setup builds the HTTP handler with every page of the application.
func Setup(cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs(uncompressedPaths)))
	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Multipart parts above this size are spooled to disk.
	router.MaxMultipartMemory = 32 << 20
	router.SetHTMLTemplate(views.MustTemplates())
	router.Use(middleware.Flashes())

	router.GET("/healthz", controllers.HealthCheck)
	router.GET("/healthz/database", controllers.DatabaseStatus)

	// Public pages
	router.GET("/accounts/login/", controllers.ShowLogin)
	router.POST("/accounts/login/", controllers.Login)
	router.POST("/accounts/logout/", controllers.Logout)
	router.GET("/registrar/", controllers.ShowRegister)
	router.POST("/registrar/", controllers.Register)

	// Logged in pages
	users := services.NewUserService(config.GetDB())
	auth := router.Group("/")
	auth.Use(middleware.EnsureValidToken(cfg), middleware.LoadCurrentUser(cfg, users))
	{
		auth.GET("/", controllers.Home)
		auth.GET("/crear/", controllers.ShowCreateRepair)
		auth.POST("/crear/", controllers.CreateRepair)
		auth.POST("/reparaciones/:id/prioridad/", controllers.SetPriority)
		auth.GET("/reparaciones/:id/media/:kind", controllers.GetRepairMedia)
		auth.GET("/reparaciones/:id/factura-final/descargar/", controllers.DownloadInvoice)
		auth.GET("/presupuestos/:id/descargar/", controllers.DownloadQuote)
	}

	// Staff pages
	staff := auth.Group("/staff")
	staff.Use(middleware.RequireStaff())
	{
		staff.GET("/reparaciones/", controllers.StaffRepairs)
		staff.POST("/reparaciones/acciones/", controllers.BulkRepairStatus)
		staff.GET("/reparaciones/:id/", controllers.StaffRepairDetail)
		staff.POST("/reparaciones/:id/", controllers.UpdateRepair)
		staff.POST("/reparaciones/:id/finalizar/", controllers.FinalizeRepair)
		staff.POST("/reparaciones/:id/reabrir/", middleware.RequireSuperuser(), controllers.ReopenRepair)
		staff.GET("/reparaciones/:id/presupuestos/", controllers.StaffQuotes)
		staff.GET("/reparaciones/:id/presupuestos/cargar/", controllers.ShowQuoteForm)
		staff.POST("/reparaciones/:id/presupuestos/cargar/", controllers.UploadQuote)
		staff.GET("/reparaciones/:id/factura-final/", controllers.ShowInvoiceForm)
		staff.POST("/reparaciones/:id/factura-final/", controllers.CreateInvoice)
		staff.POST("/presupuestos/acciones/", controllers.BulkQuoteStatus)
		staff.GET("/finalizados/", controllers.StaffFinalized)
	}

	return router
}
