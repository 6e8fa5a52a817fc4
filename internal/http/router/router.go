package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/au-lex/safeqly-backend/internal/config"
	"github.com/au-lex/safeqly-backend/internal/http/handlers"
	"github.com/au-lex/safeqly-backend/internal/http/middleware"
	"github.com/au-lex/safeqly-backend/internal/metrics"
	"github.com/au-lex/safeqly-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	escrowHandler *handlers.EscrowHandler,
	disputeHandler *handlers.DisputeHandler,
	walletHandler *handlers.WalletHandler,
	notificationHandler *handlers.NotificationHandler,
	mediaHandler *handlers.MediaHandler,
	wsHandler *handlers.WSHandler,
	adminHandler *handlers.AdminHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(metrics.Middleware())

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", metrics.Handler())
	r.StaticFS("/uploads", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/verify-email", authHandler.VerifyEmail)
		authGroup.POST("/resend-otp", authHandler.ResendOTP)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.POST("/change-password", authHandler.ChangePassword)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/profile", profileHandler.Me)
		protected.PATCH("/profile", profileHandler.Update)
		protected.GET("/users/lookup/:tag", profileHandler.Lookup)

		protected.POST("/escrows", escrowHandler.Create)
		protected.GET("/escrows", escrowHandler.List)
		protected.GET("/escrows/:id", middleware.UUIDValidator("id"), escrowHandler.Get)
		protected.POST("/escrows/:id/accept", middleware.UUIDValidator("id"), escrowHandler.Accept)
		protected.POST("/escrows/:id/reject", middleware.UUIDValidator("id"), escrowHandler.Reject)
		protected.POST("/escrows/:id/cancel", middleware.UUIDValidator("id"), escrowHandler.Cancel)
		protected.POST("/escrows/:id/complete", middleware.UUIDValidator("id"), escrowHandler.Complete)
		protected.POST("/escrows/:id/release", middleware.UUIDValidator("id"), escrowHandler.Release)

		protected.POST("/disputes", disputeHandler.Raise)
		protected.GET("/disputes", disputeHandler.List)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
		protected.POST("/disputes/:id/evidence", middleware.UUIDValidator("id"), disputeHandler.AttachEvidence)

		protected.GET("/wallet/balance", walletHandler.Balance)
		protected.GET("/wallet/transactions", walletHandler.Transactions)
		protected.POST("/wallet/deposit", walletHandler.InitiateDeposit)
		protected.GET("/wallet/deposit/:reference/verify", walletHandler.VerifyDeposit)
		protected.GET("/wallet/banks", walletHandler.ListBanks)
		protected.GET("/wallet/banks/resolve", walletHandler.ResolveAccount)
		protected.POST("/wallet/accounts", walletHandler.AddBankAccount)
		protected.GET("/wallet/accounts", walletHandler.ListBankAccounts)
		protected.POST("/wallet/accounts/:id/default", middleware.UUIDValidator("id"), walletHandler.SetDefaultBankAccount)
		protected.DELETE("/wallet/accounts/:id", middleware.UUIDValidator("id"), walletHandler.DeleteBankAccount)
		protected.POST("/wallet/withdraw", walletHandler.Withdraw)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread/count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.Delete)

		protected.POST("/media/upload", mediaHandler.Upload)
	}

	// Админка: отдельное пространство токенов
	api.POST("/admin/login", authRateLimit, adminHandler.Login)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminMiddleware(tokenManager))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.GET("/users/:id", middleware.UUIDValidator("id"), adminHandler.GetUser)
		admin.POST("/users/:id/suspend", middleware.UUIDValidator("id"), adminHandler.SuspendUser)
		admin.POST("/users/:id/unsuspend", middleware.UUIDValidator("id"), adminHandler.UnsuspendUser)
		admin.DELETE("/users/:id", middleware.UUIDValidator("id"), adminHandler.DeleteUser)

		admin.GET("/escrows/:id", middleware.UUIDValidator("id"), escrowHandler.Get)

		admin.GET("/disputes", adminHandler.ListDisputes)
		admin.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
		admin.POST("/disputes/:id/review", middleware.UUIDValidator("id"), adminHandler.ReviewDispute)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), adminHandler.ResolveDispute)
		admin.POST("/disputes/:id/reject", middleware.UUIDValidator("id"), adminHandler.RejectDispute)

		admin.GET("/transactions", adminHandler.ListTransactions)
		admin.GET("/stats", adminHandler.Stats)
	}

	return r
}
