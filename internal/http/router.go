package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/herbalgarden/internal/auth"
	"github.com/mrlokans/herbalgarden/internal/entities"
)

const hstsMaxAge = 365 * 24 * 60 * 60

// routes registers handlers on a group and records which of them skip
// authentication.
type routes struct {
	group      *gin.RouterGroup
	middleware *auth.Middleware
}

func (r routes) public(method, relativePath string, handlers ...gin.HandlerFunc) {
	r.group.Handle(method, relativePath, handlers...)
	r.middleware.AllowPublic(method, joinPath(r.group.BasePath(), relativePath))
}

// NewRouter creates and configures the HTTP router with all endpoints.
// Every route requires a session unless it is registered as public.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(cfg.Logger))
	// Outside ErrorHandler so the recorded status is the one actually written.
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}
	router.Use(Recovery(cfg.Logger))

	if cfg.FrontendURL != "" {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     []string{strings.TrimRight(cfg.FrontendURL, "/")},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", auth.CSRFTokenHeader},
			ExposeHeaders:    []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Must precede every middleware that reports errors with c.Error.
	router.Use(ErrorHandler(cfg.Logger, !cfg.Production))

	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.Production {
		router.Use(auth.StrictTransportSecurityMiddleware(hstsMaxAge))
	}

	if cfg.CSRF != nil {
		router.Use(auth.CSRFMiddleware(*cfg.CSRF, cfg.Tokens))
	}

	router.Use(cfg.AuthMiddleware.Handler())

	root := routes{group: &router.RouterGroup, middleware: cfg.AuthMiddleware}

	var pinger Pinger
	if cfg.Database != nil {
		pinger = cfg.Database
	}
	health := NewHealthController(pinger, cfg.Version)
	root.public(http.MethodGet, "/health", health.Status)

	if cfg.Metrics != nil {
		root.public(http.MethodGet, "/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := router.Group("/api")
	superAdmin := auth.RequireRoles(entities.RoleSuperAdmin)

	// Session
	authController := NewAuthController(cfg.AuthService, cfg.AuthMiddleware, cfg.Cookies, cfg.Auditor)
	authRoutes := routes{group: api.Group("/auth"), middleware: cfg.AuthMiddleware}
	authRoutes.public(http.MethodPost, "/register", authController.Register)
	authRoutes.public(http.MethodPost, "/login", authController.Login)
	authRoutes.public(http.MethodPost, "/logout", authController.Logout)
	authRoutes.public(http.MethodGet, "/csrf", authController.CSRFToken)
	authRoutes.group.GET("/me", authController.Me)
	authRoutes.group.GET("/protected", superAdmin, authController.Protected)

	// Catalog
	plantsController := NewPlantsController(cfg.Plants, cfg.Auditor)
	plantRoutes := routes{group: api.Group("/plants"), middleware: cfg.AuthMiddleware}
	plantRoutes.public(http.MethodGet, "", plantsController.List)
	plantRoutes.public(http.MethodGet, "/:id", plantsController.Get)
	plantRoutes.group.POST("", superAdmin, plantsController.Create)
	plantRoutes.group.PUT("/:id", superAdmin, plantsController.Update)
	plantRoutes.group.DELETE("/:id", superAdmin, plantsController.Delete)

	// Own account
	profileController := NewProfileController(cfg.AuthService, cfg.Cookies, cfg.Bookmarks, cfg.Auditor, cfg.Now)
	bookmarksController := NewBookmarksController(cfg.Bookmarks, cfg.Plants)
	userRoutes := api.Group("/users")
	{
		userRoutes.PUT("/profile", profileController.UpdateProfile)
		userRoutes.PUT("/password", profileController.ChangePassword)
		userRoutes.DELETE("/account", profileController.DeleteAccount)
		userRoutes.GET("/stats", profileController.Stats)
	}

	bookmarkRoutes := api.Group("/bookmarks")
	{
		bookmarkRoutes.GET("", bookmarksController.List)
		bookmarkRoutes.POST("", bookmarksController.Add)
		bookmarkRoutes.DELETE("/:kind/:id", bookmarksController.Remove)
	}

	// Administration
	adminUsers := NewAdminUsersController(cfg.AuthService, cfg.Users, cfg.Auditor)
	auditController := NewAuditController(cfg.Auditor)
	admin := api.Group("/admin", superAdmin)
	{
		admin.GET("/users", adminUsers.List)
		admin.GET("/users/:id", adminUsers.Get)
		admin.PUT("/users/:id", adminUsers.Update)
		admin.DELETE("/users/:id", adminUsers.Delete)

		admin.GET("/logs", auditController.GetAuditEvents)

		if cfg.TaskQueue != nil {
			tasksController := NewTasksController(cfg.TaskQueue, cfg.AuditRetentionDays, cfg.Auditor)
			admin.POST("/tasks/cleanup-audit", tasksController.RunAuditCleanup)
			admin.GET("/tasks/:id", tasksController.GetTaskStatus)
		}
	}

	router.NoRoute(notFound)

	return router
}
