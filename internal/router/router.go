package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/litera-backend/internal/config"
	"github.com/stemsi/litera-backend/internal/handler"
	"github.com/stemsi/litera-backend/internal/middleware"
	"github.com/stemsi/litera-backend/internal/model"
	"github.com/stemsi/litera-backend/internal/response"
	"github.com/stemsi/litera-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	StudentMgmt   *handler.StudentManagementHandler
	Book          *handler.BookHandler
	Media         *handler.MediaHandler
	WS            *handler.WSHandler
	AdminUser     *handler.AdminUserHandler
	AdminRole     *handler.AdminRoleHandler
	Setting       *handler.SettingHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Serve uploaded media files statically with aggressive caching (1 year).
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", "./uploads")
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 0. Public Group ───────────────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	{
		publicAPI.GET("/settings", handlers.Setting.GetPublicSettings)
	}

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
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
	)
	{
		studentAPI.GET("/books", handlers.StudentPortal.GetShelf)
		studentAPI.GET("/books/:book_id", handlers.StudentPortal.GetBook)
		studentAPI.GET("/books/:book_id/progress", handlers.StudentPortal.GetProgress)
		studentAPI.POST("/books/:book_id/open", handlers.StudentPortal.OpenBook)
		studentAPI.POST("/books/:book_id/submit", handlers.StudentPortal.SubmitReading)
		studentAPI.POST("/books/:book_id/complete", handlers.StudentPortal.CompleteReading)
		studentAPI.POST("/books/:book_id/pages/:page/segments", handlers.StudentPortal.UploadSegment)
		studentAPI.POST("/books/:book_id/quiz/start", handlers.StudentPortal.StartQuiz)
		studentAPI.POST("/books/:book_id/quiz/answer", handlers.StudentPortal.AnswerQuiz)
		studentAPI.GET("/stickers", handlers.StudentPortal.GetStickers)
		studentAPI.GET("/quiz-results", handlers.StudentPortal.GetQuizResults)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/books/:book_id/stream", handlers.WS.ReadingStream)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Media upload
		adminAPI.POST("/media/upload",
			middleware.RequirePermission(string(model.PermissionMediaUpload)),
			handlers.Media.UploadMedia,
		)

		// Book management
		adminAPI.GET("/books",
			middleware.RequirePermission(string(model.PermissionBooksRead)),
			handlers.Book.ListBooks,
		)
		adminAPI.GET("/books/:book_id",
			middleware.RequirePermission(string(model.PermissionBooksRead)),
			handlers.Book.GetBook,
		)
		adminAPI.POST("/books",
			middleware.RequirePermission(string(model.PermissionBooksWrite)),
			handlers.Book.CreateBook,
		)
		adminAPI.PUT("/books/:book_id",
			middleware.RequirePermission(string(model.PermissionBooksWrite)),
			handlers.Book.UpdateBook,
		)
		adminAPI.DELETE("/books/:book_id",
			middleware.RequirePermission(string(model.PermissionBooksWrite)),
			handlers.Book.DeleteBook,
		)

		// Quiz management
		adminAPI.GET("/books/:book_id/quiz",
			middleware.RequirePermission(string(model.PermissionBooksRead)),
			handlers.Book.GetQuiz,
		)
		adminAPI.PUT("/books/:book_id/quiz",
			middleware.RequirePermission(string(model.PermissionQuizzesWrite)),
			handlers.Book.ReplaceQuiz,
		)

		// Student management
		adminAPI.GET("/students",
			middleware.RequirePermission(string(model.PermissionStudentsRead)),
			handlers.StudentMgmt.ListStudents,
		)
		adminAPI.POST("/students",
			middleware.RequirePermission(string(model.PermissionStudentsWrite)),
			handlers.StudentMgmt.CreateStudent,
		)
		adminAPI.PUT("/students/:id",
			middleware.RequirePermission(string(model.PermissionStudentsWrite)),
			handlers.StudentMgmt.UpdateStudent,
		)
		adminAPI.DELETE("/students/:id",
			middleware.RequirePermission(string(model.PermissionStudentsWrite)),
			handlers.StudentMgmt.DeleteStudent,
		)
		adminAPI.POST("/students/:id/reset-session",
			middleware.RequirePermission(string(model.PermissionStudentsResetSession)),
			handlers.StudentMgmt.ResetStudentSession,
		)
		adminAPI.GET("/students/:id/progress",
			middleware.RequirePermission(string(model.PermissionProgressRead)),
			handlers.StudentMgmt.GetStudentProgress,
		)
		adminAPI.POST("/students/:id/books/:book_id/reset-progress",
			middleware.RequirePermission(string(model.PermissionProgressReset)),
			handlers.StudentMgmt.ResetReadingProgress,
		)

		// Admin User Management
		adminAPI.GET("/users",
			middleware.RequirePermission(string(model.PermissionAdminsRead)),
			handlers.AdminUser.ListAdmins,
		)
		adminAPI.POST("/users",
			middleware.RequirePermission(string(model.PermissionAdminsWrite)),
			handlers.AdminUser.CreateAdmin,
		)
		adminAPI.PUT("/users/:id",
			middleware.RequirePermission(string(model.PermissionAdminsWrite)),
			handlers.AdminUser.UpdateAdmin,
		)
		adminAPI.DELETE("/users/:id",
			middleware.RequirePermission(string(model.PermissionAdminsWrite)),
			handlers.AdminUser.DeleteAdmin,
		)
		// Roles for selection (using read permission as it's needed for viewing user form)
		adminAPI.GET("/roles",
			middleware.RequirePermission(string(model.PermissionAdminsRead)),
			handlers.AdminUser.GetRoles,
		)

		// Admin Role Management
		adminAPI.GET("/roles/all",
			middleware.RequirePermission(string(model.PermissionRolesRead)),
			handlers.AdminRole.ListRoles,
		)
		adminAPI.GET("/roles/permissions",
			middleware.RequirePermission(string(model.PermissionRolesRead)),
			handlers.AdminRole.GetPermissions,
		)
		adminAPI.GET("/roles/:id",
			middleware.RequirePermission(string(model.PermissionRolesRead)),
			handlers.AdminRole.GetRole,
		)
		adminAPI.POST("/roles",
			middleware.RequirePermission(string(model.PermissionRolesWrite)),
			handlers.AdminRole.CreateRole,
		)
		adminAPI.PUT("/roles/:id",
			middleware.RequirePermission(string(model.PermissionRolesWrite)),
			handlers.AdminRole.UpdateRole,
		)
		adminAPI.DELETE("/roles/:id",
			middleware.RequirePermission(string(model.PermissionRolesWrite)),
			handlers.AdminRole.DeleteRole,
		)

		// App Settings
		adminAPI.GET("/settings",
			middleware.RequirePermission(string(model.PermissionSettingsRead)),
			handlers.Setting.GetAllSettings,
		)
		adminAPI.PUT("/settings",
			middleware.RequirePermission(string(model.PermissionSettingsWrite)),
			handlers.Setting.UpdateSettings,
		)

		// System Monitoring
		adminAPI.GET("/system/metrics",
			handlers.System.SystemMetricsSSE, // Open to all admins
		)
	}

	return router
}
