package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ggurbet/onchainsurveys/service"
)

// SetupRouter sets up the Gin router. Metrics are registered with reg and served from /metrics.
func SetupRouter(authService *service.AuthService, reg *prometheus.Registry, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	metrics := NewMetrics(reg)

	router.Use(gin.Recovery(), RequestLogger(logger), metrics.Middleware())

	handlers := NewAuthHandlers(authService, metrics, logger)

	users := router.Group("/api/users")
	{
		users.POST("/register", handlers.Register)
		users.POST("/login", handlers.Login)
		users.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return router
}
