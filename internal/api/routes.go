package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront-backend-go/internal/core"
	"storefront-backend-go/internal/middleware"
)

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (logging, recovery, CORS, metrics) is applied in main before this call.
func SetupRoutes(
	router *gin.Engine,
	logger *zap.Logger,
	sessions *core.SessionManager,
	credentials core.CredentialService,
	profiles core.ProfileService,
	feed core.TestimonialFeed,
	google GoogleFlow,
	clientURL string,
	secureCookies bool,
) {
	sessionAuth := middleware.NewSessionAuth(sessions, logger)
	requireSession := sessionAuth.RequireSession()
	requireUser := sessionAuth.RequireUser()

	sessionHandler := NewSessionHandler(sessions, secureCookies, logger)
	authHandler := NewAuthHandler(credentials, google, clientURL, logger)
	userHandler := NewUserHandler(profiles, credentials, logger)
	testimonialHandler := NewTestimonialHandler(feed, logger)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/sessions", sessionHandler.OpenSession)
		apiV1.DELETE("/sessions", requireSession, sessionHandler.CloseSession)

		sessionGroup := apiV1.Group("/session", requireSession)
		{
			sessionGroup.GET("/state", sessionHandler.GetState)
			sessionGroup.GET("/events", sessionHandler.Events)
		}

		authGroup := apiV1.Group("/auth")
		{
			// Password reset links are opened from email, usually without a session.
			authGroup.POST("/password-reset", authHandler.SendPasswordReset)
			authGroup.POST("/password-reset/verify", authHandler.VerifyResetCode)
			authGroup.POST("/password-reset/confirm", authHandler.ConfirmReset)

			authGroup.POST("/login", requireSession, authHandler.Login)
			authGroup.POST("/register", requireSession, authHandler.Register)
			authGroup.POST("/google", requireSession, authHandler.LoginWithGoogle)
			authGroup.GET("/google/start", requireSession, authHandler.GoogleStart)
			authGroup.GET("/google/callback", requireSession, authHandler.GoogleCallback)
			authGroup.POST("/logout", requireSession, authHandler.Logout)
			authGroup.GET("/remembered-email", requireSession, authHandler.RememberedEmail)
			authGroup.POST("/verification", requireSession, requireUser, authHandler.ResendVerification)
		}

		usersGroup := apiV1.Group("/users/me", requireSession, requireUser)
		{
			usersGroup.GET("", userHandler.GetCurrentUserProfile)
			usersGroup.PATCH("", userHandler.UpdateCurrentUserProfile)
			usersGroup.GET("/summary", userHandler.GetSummary)
			usersGroup.POST("/avatar", userHandler.UploadAvatar)
			usersGroup.POST("/password", userHandler.ChangePassword)

			usersGroup.GET("/testimonials", testimonialHandler.ListMine)
			usersGroup.PUT("/testimonials/:id", testimonialHandler.UpdateMine)
			usersGroup.DELETE("/testimonials/:id", testimonialHandler.DeleteMine)
		}

		apiV1.GET("/testimonials", testimonialHandler.PublicFeed)

		apiV1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true, "status": "UP", "sessions": sessions.Len()})
		})
		apiV1.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	logger.Info("API routes configured under /api/v1")
}
