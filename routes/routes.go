package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/phillip/event-manager-go/controllers"
	"github.com/phillip/event-manager-go/metrics"
	"github.com/phillip/event-manager-go/middleware"
)

func SetupRoutes(r *gin.Engine, app *controllers.App) {
	cfg := app.Config

	r.Use(
		middleware.RequestID(app.Logger),
		middleware.RequestLogging(),
		middleware.Metrics(),
		middleware.SecurityHeaders(cfg.IsProduction()),
		middleware.ErrorHandler(cfg.IsProduction()),
		middleware.Recovery(),
		cors.New(corsConfig(cfg.Server.CORSOrigins)),
		middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window),
	)
	r.NoRoute(middleware.NotFound())

	// public
	r.GET("/health", controllers.Health(app))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authRoutes := r.Group("/auth")
	authRoutes.Use(middleware.RateLimit(cfg.RateLimit.AuthRequests, cfg.RateLimit.Window))
	{
		authRoutes.POST("/register", controllers.Register(app))
		authRoutes.POST("/login", controllers.Login(app))
	}

	// protected
	auth := middleware.AuthMiddleware(app.Identity)

	r.GET("/api/test-auth", auth, controllers.TestAuth())

	events := r.Group("/api/events")
	{
		events.GET("", controllers.ListEvents(app))
		events.GET("/image/:id", controllers.GetEventImage(app))
		events.GET("/my-event", auth, controllers.ListMyEvents(app))
		events.GET("/:id", controllers.GetEvent(app))

		events.POST("", auth, controllers.CreateEvent(app))
		events.POST("/create-event", auth, controllers.CreateEvent(app))
		events.POST("/create-with-images", auth, controllers.CreateEventWithImages(app))

		events.PUT("/:id", auth, controllers.UpdateEvent(app))
		events.PUT("/:id/with-images", auth, controllers.UpdateEventWithImages(app))
		events.DELETE("/:id", auth, controllers.DeleteEvent(app))
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"ETag", "Last-Modified", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// cors.New panics on an empty origin list
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}
	return c
}
