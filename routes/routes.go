package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ttss_backend/config"
	"ttss_backend/controllers"
	"ttss_backend/middleware"
)

// CORSMiddleware handles cross-origin requests from the dashboard
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRoutes registers all API routes
func SetupRoutes(r *gin.Engine) {
	r.Use(CORSMiddleware())

	limiter := middleware.NewRateLimiter(300, time.Minute)
	r.Use(limiter.Middleware())

	// Health probes
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		sqlDB, err := config.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// WebSocket subscription (token usually passed as query param by
	// browser clients, so it sits outside the JWT group)
	r.GET("/ws/signals", controllers.SignalWebSocket)

	v1 := r.Group("/api/v1")

	// Public auth endpoints
	auth := v1.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)
	}

	// Everything else requires a token
	protected := v1.Group("")
	protected.Use(middleware.JWTAuth())
	{
		protected.GET("/auth/me", controllers.Me)

		filter := protected.Group("/filter")
		{
			filter.GET("/stocks", controllers.GetFilteredStocks)
			filter.GET("/stocks/:code", controllers.GetStockTagDetails)
			filter.GET("/tags", controllers.GetAvailableTags)
			filter.GET("/statistics", controllers.GetTagStatistics)
			filter.GET("/latest-date", controllers.GetLatestTradeDate)
		}

		protected.GET("/market/overview", controllers.GetMarketOverview)

		tags := protected.Group("/tags")
		{
			tags.GET("", controllers.ListTags)
			tags.GET("/:id", controllers.GetTag)
			tags.POST("", controllers.CreateTag)
			tags.PUT("/:id", controllers.UpdateTag)
			tags.DELETE("/:id", controllers.DeleteTag)
			tags.POST("/:id/toggle", controllers.ToggleTag)
			tags.POST("/reorder", controllers.ReorderTags)
			tags.POST("/validate-logic", controllers.ValidateTagLogic)
			tags.GET("/logs", middleware.AdminOnly(), controllers.GetTagOperationLogs)
		}

		cfg := protected.Group("/config")
		{
			cfg.GET("", controllers.GetUserConfig)
			cfg.PUT("", controllers.UpdateUserConfig)
			cfg.POST("/reset", controllers.ResetUserConfig)
			cfg.GET("/backtest-pool", controllers.GetBacktestPool)
			cfg.PUT("/backtest-pool", controllers.SetBacktestPool)
		}

		watchlist := protected.Group("/watchlist")
		{
			watchlist.GET("", controllers.GetWatchlist)
			watchlist.POST("", controllers.AddToWatchlist)
			watchlist.DELETE("/:code", controllers.RemoveFromWatchlist)
			watchlist.PUT("/:code", controllers.UpdateWatchlistNote)
		}

		stocks := protected.Group("/stocks")
		{
			stocks.GET("/:code/detail", controllers.GetStockDetail)
			stocks.GET("/:code/bars", controllers.GetStockBars)
		}

		signals := protected.Group("/signals")
		{
			signals.POST("/calculate", middleware.AdminOnly(), controllers.TriggerCalculation)
			signals.GET("/runs", controllers.ListCalculationRuns)
		}

		protected.POST("/backtests", controllers.RunBacktest)
		protected.GET("/backtests", controllers.ListBacktests)

		users := protected.Group("/users")
		users.Use(middleware.AdminOnly())
		{
			users.GET("", controllers.ListUsers)
			users.PUT("/:id", controllers.UpdateUser)
		}
	}
}
