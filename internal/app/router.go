package app

import (
	"dorm_match_backend/docs"
	"dorm_match_backend/internal/config"
	"dorm_match_backend/internal/middleware"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/pkg/monitoring"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const lastSeenInterval = time.Minute

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. public, optionally authenticated
	a.registerPublicRoutes(router, c, cfg)

	// 2. everything below needs a token
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user, lastSeenInterval))
	{
		a.registerAccountRoutes(authGroup, c)
		a.registerStudentRoutes(authGroup, c)
		a.registerListerRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		public.GET("/listings", c.listing.Browse)
		public.GET("/listings/:id", middleware.TryAuthMiddleware(cfg), c.listing.Detail)
	}
}

func (a *App) registerAccountRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)
	rg.PUT("/user/profile", c.user.UpdateProfile)
	rg.POST("/user/avatar", c.user.UploadAvatar)
	rg.POST("/user/onboarding/complete", c.user.CompleteOnboarding)
	rg.GET("/notifications/counts", c.notification.Counts)
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	student := rg.Group("")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.POST("/listings/:id/requests", c.tenantRequest.Submit)
		student.GET("/notifications/student", c.notification.Student)
		student.POST("/notifications/student/read", c.notification.MarkRead)
	}
}

func (a *App) registerListerRoutes(rg *gin.RouterGroup, c *controllers) {
	lister := rg.Group("")
	lister.Use(middleware.RoleMiddleware(model.Lister))
	{
		lister.POST("/listings", c.listing.Create)
		lister.GET("/lister/listings", c.listing.Mine)
		lister.PUT("/listings/:id", c.listing.Update)
		lister.PATCH("/listings/:id/status", c.listing.SetStatus)
		lister.POST("/listings/:id/photos", c.listing.AddPhoto)
		lister.DELETE("/listings/:id/photos/:photoId", c.listing.DeletePhoto)
		lister.GET("/listings/:id/manage", c.listing.Manage)
		lister.GET("/listings/:id/tenants", c.listing.Tenants)
		lister.DELETE("/listings/:id/tenants/:userId", c.tenantRequest.RemoveTenant)

		lister.POST("/requests/:id/accept", c.tenantRequest.Accept)
		lister.POST("/requests/:id/reject", c.tenantRequest.Reject)
		lister.GET("/notifications/lister", c.notification.Lister)
	}
}
