package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simaogato/payments-backend/internal/telemetry"
)

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(h *Handler, verifier TokenVerifier, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = telemetry.Logger
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(Tracing())
	router.Use(Metrics())
	router.Use(RequestLogger(logger))

	SetupRoutes(router, h, verifier)
	return router
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *Handler, verifier TokenVerifier) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	users := v1.Group("/user")
	{
		users.POST("/signup", h.Signup)
		users.POST("/login", h.Login)
		users.POST("/logout", h.Logout)
		users.GET("/bulk", Auth(verifier), h.SearchUsers)
	}

	accounts := v1.Group("/account", Auth(verifier))
	{
		accounts.GET("/balance", h.GetBalance)
		accounts.POST("/transfer", h.Transfer)
		accounts.GET("/transfers", h.ListTransfers)
	}
}
