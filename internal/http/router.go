package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Pinger comprueba la disponibilidad del almacén de documentos.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter configura el router de Gin con middlewares y rutas /api/auth.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	authMW gin.HandlerFunc,
	store Pinger,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", healthHandler(logger, store))

	auth := r.Group("/api/auth")
	auth.POST("/check-username", authH.CheckUsername)
	auth.POST("/check-email", authH.CheckEmail)
	auth.POST("/register", authH.Register)
	auth.POST("/verify-registration", authH.VerifyRegistration)
	auth.POST("/login", authH.Login)
	auth.POST("/verify-mfa", authH.VerifyMFA)
	auth.POST("/forgot-password", authH.ForgotPassword)
	auth.POST("/reset-password", authH.ResetPassword)

	protected := auth.Group("", authMW)
	protected.GET("/user", authH.GetUser)
	protected.PUT("/update-username", authH.UpdateUsername)
	protected.POST("/logout", authH.Logout)

	return r
}

func healthHandler(logger *zap.Logger, store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
