package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/investours/backend/internal/config"
	"github.com/investours/backend/internal/handlers"
	"github.com/investours/backend/internal/middleware"
)

// SetupRouter builds the gin engine with all API routes registered.
func SetupRouter(cfg *config.Config, gfeHandler *handlers.GFEHandler, referralHandler *handlers.ReferralHandler, adminHandler *handlers.AdminGFEHandler) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.FrontendURL}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	// Public
	v1.POST("/gfe/track-click", gfeHandler.TrackClick)
	v1.GET("/gfe/leaderboard", gfeHandler.GetLeaderboard)

	// Authenticated
	auth := v1.Group("")
	auth.Use(middleware.Auth(cfg.JWT))
	{
		auth.POST("/referrals/attach", referralHandler.AttachReferral)
		auth.GET("/referrals", referralHandler.ListReferrals)

		auth.GET("/gfe/overview", gfeHandler.GetOverview)
		auth.GET("/gfe/profile", gfeHandler.GetProfile)
		auth.GET("/gfe/earnings", gfeHandler.GetEarnings)
		auth.GET("/gfe/wallet", gfeHandler.GetWallet)
		auth.GET("/gfe/wallet/transactions", gfeHandler.ListTransactions)
		auth.POST("/gfe/withdrawals", gfeHandler.RequestWithdrawal)
		auth.GET("/gfe/withdrawals", gfeHandler.ListWithdrawals)
	}

	// Admin
	admin := v1.Group("/admin")
	admin.Use(middleware.Auth(cfg.JWT), middleware.AdminOnly())
	{
		admin.POST("/events/attribute", referralHandler.AttributeEvent)
		admin.POST("/gfe/:principal_id/lock", adminHandler.SetWalletLock)
		admin.POST("/gfe/:principal_id/adjust", adminHandler.AdjustBalance)
		admin.POST("/gfe/:principal_id/gem-points", adminHandler.AwardGemPoints)
		admin.PUT("/gfe/:principal_id/settings", adminHandler.UpdateSettings)
		admin.GET("/gfe/:principal_id/audit", adminHandler.GetAuditTrail)
		admin.POST("/withdrawals/:withdrawal_id/settle", adminHandler.SettleWithdrawal)
	}

	return r
}
