package api

import (
	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/internal/admin"
	"github.com/koepon-app/koepon-backend/internal/draw"
	"github.com/koepon-app/koepon-backend/internal/exchange"
	"github.com/koepon-app/koepon-backend/internal/gacha"
	"github.com/koepon-app/koepon-backend/internal/medal"
	"github.com/koepon-app/koepon-backend/internal/payment"
	"github.com/koepon-app/koepon-backend/internal/platform/health"
	"github.com/koepon-app/koepon-backend/internal/user"
	"github.com/koepon-app/koepon-backend/internal/vtuber"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	router.GET("/health", health.Handler)

	v1 := router.Group("/api/v1")
	{
		// 账号生命周期 /api/v1/auth
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", user.RegisterHandler)
			authRoutes.POST("/login", user.LoginHandler)
			authRoutes.POST("/refresh", user.RefreshHandler)
			authRoutes.POST("/logout", user.RequireAuth(), user.LogoutHandler)
		}

		// 公开目录
		v1.GET("/vtubers", vtuber.GetVTubers)
		v1.GET("/vtubers/:id", vtuber.GetVTuberByID)
		v1.GET("/gacha", gacha.GetGachas)
		v1.GET("/gacha/:id", gacha.GetGachaByID)

		// 勋章账本 /api/v1/medals
		medalRoutes := v1.Group("/medals", user.RequireAuth())
		{
			medalRoutes.GET("/balance", medal.GetMedalBalance)
			medalRoutes.GET("/transactions", medal.GetMedalTransactions)
		}
	}

	// 支付 /payments
	paymentRoutes := router.Group("/payments")
	{
		paymentRoutes.POST("/create-intent", user.RequireAuth(), payment.CreatePaymentIntent)
		paymentRoutes.POST("/webhook", payment.HandleStripeWebhook)
	}

	apiRoutes := router.Group("/api")
	{
		// 抽选执行，两个端点共用实现
		apiRoutes.POST("/gacha/draw", user.RequireAuth(), draw.ExecuteDrawHandler)
		apiRoutes.POST("/gacha/draw-multi", user.RequireAuth(), draw.ExecuteDrawHandler)

		// 勋章兑换 /api/exchange
		exchangeRoutes := apiRoutes.Group("/exchange")
		{
			exchangeRoutes.GET("/items", exchange.GetExchangeItems)
			exchangeRoutes.POST("/redeem", user.RequireAuth(), exchange.RedeemHandler)
			exchangeRoutes.GET("/redemptions", user.RequireAuth(), exchange.GetRedemptions)
		}
	}

	// 管理端 /admin
	adminRoutes := router.Group("/admin", user.RequireAuth(), user.RequireAdmin())
	{
		adminRoutes.GET("/dashboard/stats", admin.GetDashboard)
		adminRoutes.GET("/users", admin.ListUsers)
		adminRoutes.GET("/vtubers", admin.ListVTubers)
		adminRoutes.POST("/vtubers/:id/approve", admin.ApproveVTuber)
		adminRoutes.GET("/gacha", admin.ListGachasAdmin)
		adminRoutes.POST("/gacha", admin.CreateGacha)
		adminRoutes.PUT("/gacha/:id", admin.UpdateGacha)
	}
}
