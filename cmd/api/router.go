package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"identity-registry/internal/shared/middleware"
	"identity-registry/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", healthCheckHandler(c))

		setupIdentityRoutes(v1, c)
		setupNonceRoutes(v1, c)
		setupAdminRoutes(v1, c)
	}

	return router
}

// ========================================
// IDENTITY ROUTES
// ========================================
func setupIdentityRoutes(v1 *gin.RouterGroup, c *container.Container) {
	identities := v1.Group("/identities")
	{
		// Signed submissions
		identities.POST("/mint", c.IssuanceHandler.Mint)
		identities.POST("/renew", c.IssuanceHandler.Renew)

		// Lookups
		identities.GET("/username/:username", c.RegistryHandler.GetByUsername)
		identities.GET("/address/:address", c.RegistryHandler.GetByAddress)
		identities.GET("/token/:tokenID", c.RegistryHandler.GetByTokenID)
		identities.GET("/token/:tokenID/uri", c.RegistryHandler.GetTokenURI)

		// Always answers with the soulbound rejection for bound tokens
		identities.POST("/transfer", c.RegistryHandler.Transfer)
	}
}

// ========================================
// NONCE ROUTES
// ========================================
func setupNonceRoutes(v1 *gin.RouterGroup, c *container.Container) {
	nonces := v1.Group("/nonces")
	{
		nonces.GET("/:address", c.IssuanceHandler.GetNonce)
	}
}

// ========================================
// ADMIN ROUTES (owner-gated)
// ========================================
func setupAdminRoutes(v1 *gin.RouterGroup, c *container.Container) {
	admin := v1.Group("/admin")

	// Login is the only unauthenticated admin endpoint.
	admin.POST("/auth/login", c.AdminHandler.Login)

	protected := admin.Group("")
	protected.Use(
		middleware.AuthMiddleware(c.JWTManager),
		middleware.OwnerMiddleware(),
	)
	{
		registry := protected.Group("/registry")
		{
			registry.GET("/settings", c.RegistryHandler.GetSettings)
			registry.PUT("/controller", c.RegistryHandler.SetController)
			registry.PUT("/duration", c.RegistryHandler.SetDuration)
			registry.PUT("/expiry-enforcement", c.RegistryHandler.SetExpiryEnforcement)
			registry.PUT("/metadata-base", c.RegistryHandler.SetMetadataBase)
		}

		controller := protected.Group("/controller")
		{
			controller.GET("/state", c.IssuanceHandler.GetState)
			controller.PUT("/signer", c.IssuanceHandler.SetSigner)
			controller.PUT("/mint-fee", c.IssuanceHandler.SetMintFee)
			controller.PUT("/renewal-fee", c.IssuanceHandler.SetRenewalFee)
			controller.POST("/withdraw", c.IssuanceHandler.Withdraw)
		}
	}
}

// ========================================
// HEALTH CHECK HANDLER
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
			"services":  gin.H{},
		}

		// Check database
		dbStatus := "ok"
		if appCtx.DB == nil || appCtx.DB.Pool == nil {
			dbStatus = "disconnected"
			health["status"] = "degraded"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := appCtx.DB.HealthCheck(ctx); err != nil {
				dbStatus = fmt.Sprintf("error: %v", err)
				health["status"] = "degraded"
			}
		}

		// Check redis
		redisStatus := "ok"
		if appCtx.Cache == nil {
			redisStatus = "disconnected"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := appCtx.Cache.Ping(ctx); err != nil {
				redisStatus = fmt.Sprintf("error: %v", err)
			}
		}

		health["services"] = gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
		}

		statusCode := http.StatusOK
		if dbStatus != "ok" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}
