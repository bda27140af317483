package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"food-share-server/config"
	"food-share-server/metrics"
	"food-share-server/middleware"
)

// SetupRouter builds the engine with the middleware stack and every API route
func SetupRouter(cfg *config.Config, h *Handler, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()

	// Disable automatic redirects for trailing slashes
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.InputValidationMiddleware())
	if cfg.Server.RateLimitEnabled && limiter != nil {
		router.Use(middleware.RateLimitMiddleware(limiter))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Food Share Server is running",
			"time":    time.Now().UTC(),
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// protect guards writes and private reads when AUTH_REQUIRED is set
	protect := func(c *gin.Context) { c.Next() }
	if cfg.Server.AuthRequired {
		protect = middleware.AuthMiddleware(h.Tokens)
	}

	api := router.Group("/api")
	api.Use(middleware.OptionalAuthMiddleware(h.Tokens))
	{
		h.RegisterAuthRoutes(api.Group("/auth"))
		h.RegisterUserRoutes(api.Group("/users"))
		h.RegisterListingRoutes(api.Group("/listings"), protect)
		h.RegisterClaimRoutes(api.Group("/claims"), protect)
		h.RegisterNotificationRoutes(api.Group("/notifications"), protect)
		h.RegisterSearchRoutes(api)
		h.RegisterStatsRoutes(api)
		h.RegisterPlacesRoutes(api)
		h.RegisterUploadRoutes(api, protect)
		h.RegisterSeedRoutes(api)
	}

	return router
}
