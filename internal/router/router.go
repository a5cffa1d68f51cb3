package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/oets-school/oets-api/internal/handler"
	"github.com/oets-school/oets-api/internal/middleware"
	"github.com/oets-school/oets-api/internal/models"
	"github.com/oets-school/oets-api/internal/repository"
	"github.com/oets-school/oets-api/internal/service"
	"github.com/oets-school/oets-api/pkg/config"
	"github.com/oets-school/oets-api/pkg/logger"
	corsmiddleware "github.com/oets-school/oets-api/pkg/middleware/cors"
	reqidmiddleware "github.com/oets-school/oets-api/pkg/middleware/requestid"
	"go.uber.org/zap"
)

// Dependencies carries everything the router needs to register routes.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Metrics *service.MetricsService

	UserRepo *repository.UserRepository

	Auth             *handler.AuthHandler
	Users            *handler.UserHandler
	Departments      *handler.DepartmentHandler
	Courses          *handler.CourseHandler
	Enrollments      *handler.EnrollmentHandler
	Documents        *handler.DocumentHandler
	News             *handler.NewsHandler
	Pages            *handler.PageHandler
	TrainingRequests *handler.TrainingRequestHandler
	Reports          *handler.ReportHandler

	AuthService *service.AuthService
}

// New builds the gin engine with the full middleware chain and route table.
func New(deps Dependencies) *gin.Engine {
	cfg := deps.Config

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	registerOps(r, deps)

	api := r.Group(cfg.APIPrefix)
	auth := middleware.JWT(deps.AuthService)
	optionalAuth := middleware.OptionalJWT(deps.AuthService)
	adminOnly := middleware.RBAC(string(models.RoleAdmin))
	staffOnly := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)

	// Authentication
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", deps.Auth.Login)
		authGroup.POST("/refresh", deps.Auth.Refresh)
		authGroup.POST("/logout", auth, deps.Auth.Logout)
		authGroup.POST("/change-password", auth, deps.Auth.ChangePassword)
		authGroup.GET("/me", auth, deps.Auth.Me)
	}

	// Users. Registration is public; management is admin or self scoped.
	users := api.Group("/users")
	{
		users.POST("", optionalAuth, deps.Users.Create)
		users.GET("", auth, adminOnly, deps.Users.List)
		users.GET("/:id", auth, middleware.RBAC(string(models.RoleAdmin), "SELF"), deps.Users.Get)
		users.PUT("/:id", auth, middleware.RBAC(string(models.RoleAdmin), "SELF"),
			middleware.Audit(deps.UserRepo, models.AuditActionUserUpdate, "user"), deps.Users.Update)
		users.DELETE("/:id", auth, adminOnly,
			middleware.Audit(deps.UserRepo, models.AuditActionUserDeactivate, "user"), deps.Users.Deactivate)
	}

	// Departments. Reads are public, writes are admin only.
	departments := api.Group("/departments")
	{
		departments.GET("", deps.Departments.List)
		departments.GET("/:id", deps.Departments.Get)
		departments.POST("", auth, adminOnly, deps.Departments.Create)
		departments.PUT("/:id", auth, adminOnly, deps.Departments.Update)
		departments.DELETE("/:id", auth, adminOnly, deps.Departments.Delete)
	}

	// Courses. Catalog reads are public, writes require teacher or admin.
	courses := api.Group("/courses")
	{
		courses.GET("", deps.Courses.List)
		courses.GET("/:id", deps.Courses.Get)
		courses.POST("", auth, staffOnly, deps.Courses.Create)
		courses.PUT("/:id", auth, staffOnly, deps.Courses.Update)
		courses.DELETE("/:id", auth, staffOnly, deps.Courses.Archive)
		courses.PUT("/:id/teacher", auth, adminOnly, deps.Courses.ReassignTeacher)
	}

	// Enrollments. Role scoping happens inside the service.
	enrollments := api.Group("/enrollments", auth)
	{
		enrollments.POST("", middleware.RequireRoles(models.RoleStudent), deps.Enrollments.Create)
		enrollments.GET("", deps.Enrollments.List)
		enrollments.GET("/:id", deps.Enrollments.Get)
		enrollments.PUT("/:id/decision", staffOnly,
			middleware.Audit(deps.UserRepo, models.AuditActionEnrollmentDecision, "enrollment"), deps.Enrollments.Decide)
		enrollments.DELETE("/:id", deps.Enrollments.Delete)
	}

	// Documents. Download is token-authenticated, not session-authenticated.
	documents := api.Group("/documents")
	{
		documents.POST("", auth, deps.Documents.Upload)
		documents.GET("/:id", auth, deps.Documents.Get)
		documents.GET("/:id/download", deps.Documents.Download)
		documents.DELETE("/:id", auth, deps.Documents.Delete)
	}

	// CMS content. Reads are public, writes are admin only.
	news := api.Group("/news")
	{
		news.GET("", deps.News.List)
		news.GET("/:id", deps.News.Get)
		news.POST("", auth, adminOnly, deps.News.Create)
		news.PUT("/:id", auth, adminOnly, deps.News.Update)
		news.DELETE("/:id", auth, adminOnly, deps.News.Delete)
	}

	pages := api.Group("/pages")
	{
		pages.GET("", optionalAuth, deps.Pages.List)
		pages.GET("/:slug", optionalAuth, deps.Pages.Get)
		pages.POST("", auth, adminOnly, deps.Pages.Create)
		pages.PUT("/:id", auth, adminOnly, deps.Pages.Update)
		pages.DELETE("/:id", auth, adminOnly, deps.Pages.Delete)
	}

	// Training requests
	training := api.Group("/training-requests", auth)
	{
		training.POST("", deps.TrainingRequests.Create)
		training.GET("", adminOnly, deps.TrainingRequests.List)
		training.GET("/:id", adminOnly, deps.TrainingRequests.Get)
		training.PUT("/:id/status", adminOnly, deps.TrainingRequests.UpdateStatus)
	}

	// Reports. Download is token-authenticated.
	reports := api.Group("/reports")
	{
		reports.POST("", auth, staffOnly, deps.Reports.Create)
		reports.GET("/:id", auth, staffOnly, deps.Reports.Get)
		reports.GET("/:id/download", deps.Reports.Download)
	}

	return r
}

func registerOps(r *gin.Engine, deps Dependencies) {
	cfg := deps.Config
	metricsHandler := handler.NewMetricsHandler(deps.Metrics)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := deps.DB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		if deps.Redis != nil {
			if err := deps.Redis.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}
