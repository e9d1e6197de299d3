package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/servicehub-backend/internal/config"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/http/middleware"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/handler"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/response"
	"github.com/ignatzorin/servicehub-backend/internal/metrics"
	"github.com/ignatzorin/servicehub-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	tokenManager *service.TokenManager,
	jobHandler *handler.JobHandler,
	paymentHandler *handler.PaymentHandler,
	webhookHandler *handler.WebhookHandler,
	adminHandler *handler.AdminHandler,
	wsHandler *handler.WSHandler,
	healthHandler *handler.HealthHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	response.ExposeProviderDetails(cfg.Env != "production")

	r := gin.New()
	r.Use(gin.Logger(), middleware.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(metrics.GinMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	// Вебхуки провайдера: без JWT, подпись проверяется по сырому телу.
	webhooks := api.Group("/webhooks")
	webhooks.Use(middleware.RateLimitMiddleware("webhook", cfg.RateLimitLimit*10, cfg.RateLimitPeriod))
	{
		webhooks.POST("/paystack", middleware.PaystackSignature(cfg.Paystack.WebhookSecret), webhookHandler.Paystack)
	}

	api.GET("/ws", wsHandler.Handle)

	protected := api.Group("/")
	protected.Use(middleware.RateLimitMiddleware("api", cfg.RateLimitLimit, cfg.RateLimitPeriod))
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/jobs", jobHandler.ListJobs)
		protected.POST("/jobs", middleware.RequireRole(valueobject.RoleBuyer), jobHandler.CreateJob)
		protected.GET("/jobs/:id", middleware.UUIDValidator("id"), jobHandler.GetJob)
		protected.PATCH("/jobs/:id/status", middleware.UUIDValidator("id"), jobHandler.TransitionJob)
		protected.POST("/jobs/:id/satisfaction", middleware.UUIDValidator("id"), jobHandler.SubmitSatisfaction)

		protected.POST("/jobs/:id/payments", middleware.UUIDValidator("id"), paymentHandler.InitializePayment)
		protected.GET("/payments/verify/:reference", paymentHandler.VerifyPayment)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(valueobject.RoleAdmin))
	{
		admin.GET("/disputes", adminHandler.ListDisputes)
		admin.GET("/escrow", adminHandler.ListEscrowQueue)
		admin.POST("/jobs/:id/resolve", middleware.UUIDValidator("id"), adminHandler.ResolveDispute)
		admin.POST("/jobs/:id/release", middleware.UUIDValidator("id"), adminHandler.ReleaseEscrow)
		admin.GET("/jobs/:id/audit", middleware.UUIDValidator("id"), adminHandler.ListAudit)
	}

	return r
}
