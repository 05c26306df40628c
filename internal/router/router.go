package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/somosuni/lms-backend/internal/config"
	"github.com/somosuni/lms-backend/internal/handler"
	"github.com/somosuni/lms-backend/internal/logger"
	"github.com/somosuni/lms-backend/internal/metrics"
	"github.com/somosuni/lms-backend/internal/middleware"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/response"
	"github.com/somosuni/lms-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Student   *handler.StudentHandler
	Catalog   *handler.CatalogHandler
	Progress  *handler.ProgressHandler
	Result    *handler.ResultHandler
	Media     *handler.MediaHandler
	WS        *handler.WSHandler
	Setting   *handler.SettingHandler
	Dashboard *handler.DashboardHandler
	Health    *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work started here, such as the login limiter sweep.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the request log line can carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(logger.RequestLogger(log))
	router.Use(metrics.Middleware())
	router.Use(middleware.Brotli())

	// Locally stored media is immutable (UUID names), so cache it for a year.
	if cfg.StorageDriver == config.StorageLocal {
		uploadsGroup := router.Group("/uploads")
		uploadsGroup.Use(middleware.CacheControl(31536000))
		{
			uploadsGroup.Static("/", cfg.UploadDir)
		}
	}

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	{
		publicAPI.GET("/settings", handlers.Setting.GetPublicSettings)
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	if cfg.LoginRatePerMinute > 0 {
		authLimiter := middleware.NewRateLimiter(ctx, cfg.LoginRatePerMinute, 5)
		auth.Use(authLimiter.Middleware())
	}
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.NoStore(),
	)
	{
		studentAPI.GET("/progress", handlers.Progress.GetOverview)
		studentAPI.GET("/courses/:course_id/progress", handlers.Progress.GetCourseProgress)
		studentAPI.GET("/modules/:module_id/progress", handlers.Progress.GetModuleProgress)
		studentAPI.GET("/tests/:test_id/status", handlers.Progress.GetTestStatus)
		studentAPI.GET("/tests/:test_id/results", handlers.Result.ListResults)
		studentAPI.POST("/tests/:test_id/results", handlers.Result.SubmitResult)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		ws.GET("/student/progress/stream", handlers.WS.ProgressStream)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Media upload
		adminAPI.POST("/media/upload",
			middleware.RequirePermission(model.PermissionMediaUpload),
			handlers.Media.UploadMedia,
		)

		// Student management
		adminAPI.GET("/students",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.Student.ListStudents,
		)
		adminAPI.POST("/students",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.Student.CreateStudent,
		)
		adminAPI.POST("/students/:id/reset-session",
			middleware.RequirePermission(model.PermissionStudentsResetSession),
			handlers.Student.ResetStudentSession,
		)

		// Courses
		courses := adminAPI.Group("/courses")
		{
			courses.GET("", middleware.RequirePermission(model.PermissionCoursesRead), handlers.Catalog.ListCourses)
			courses.POST("", middleware.RequirePermission(model.PermissionCoursesWrite), handlers.Catalog.CreateCourse)
			courses.GET("/:id", middleware.RequirePermission(model.PermissionCoursesRead), handlers.Catalog.GetCourse)
			courses.PUT("/:id", middleware.RequirePermission(model.PermissionCoursesWrite), handlers.Catalog.UpdateCourse)
			courses.DELETE("/:id", middleware.RequirePermission(model.PermissionCoursesWrite), handlers.Catalog.DeleteCourse)
			courses.GET("/:id/outline", middleware.RequirePermission(model.PermissionCoursesRead), handlers.Catalog.GetOutline)
			courses.GET("/:id/modules", middleware.RequirePermission(model.PermissionCoursesRead), handlers.Catalog.ListModules)
			courses.POST("/:id/modules", middleware.RequirePermission(model.PermissionCoursesWrite), handlers.Catalog.CreateModule)

			courses.GET("/:id/progress", middleware.RequirePermission(model.PermissionProgressRead), handlers.Progress.GetStudentCourseProgress)
			courses.GET("/:id/report", middleware.RequirePermission(model.PermissionProgressRead), handlers.Progress.GetCourseReport)
		}

		// Modules
		modules := adminAPI.Group("/modules")
		{
			modules.PUT("/:id", middleware.RequirePermission(model.PermissionCoursesWrite), handlers.Catalog.UpdateModule)
			modules.DELETE("/:id", middleware.RequirePermission(model.PermissionCoursesWrite), handlers.Catalog.DeleteModule)
			modules.GET("/:id/tests", middleware.RequirePermission(model.PermissionCoursesRead), handlers.Catalog.ListTests)
			modules.POST("/:id/tests", middleware.RequirePermission(model.PermissionCoursesWrite), handlers.Catalog.CreateTest)
		}

		// Tests
		tests := adminAPI.Group("/tests")
		{
			tests.PUT("/:id", middleware.RequirePermission(model.PermissionCoursesWrite), handlers.Catalog.UpdateTest)
			tests.DELETE("/:id", middleware.RequirePermission(model.PermissionCoursesWrite), handlers.Catalog.DeleteTest)
		}

		// Dashboard
		adminAPI.GET("/dashboard",
			handlers.Dashboard.GetDashboardData, // Open to all admins
		)

		// App Settings Routes
		settingsGroup := adminAPI.Group("/settings")
		{
			settingsGroup.GET("", middleware.RequirePermission(model.PermissionSettingsRead), handlers.Setting.GetAllSettings)
			settingsGroup.PUT("", middleware.RequirePermission(model.PermissionSettingsWrite), handlers.Setting.UpdateSettings)
		}
	}

	return router
}
