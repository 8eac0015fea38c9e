package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dado-auth/internal/service"
)

const (
	authClaimsKey = "auth_claims"

	msgAccessDenied = "Acceso denegado"
	msgInvalidToken = "Token inválido"
)

// JWTAuthMiddleware valida el bearer token de sesión y guarda claims en el contexto.
// Sin token responde 401; token inválido, expirado o revocado responde 403.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			c.Abort()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgAccessDenied})
			c.Abort()
			return
		}

		claims, err := jwtSvc.ParseSession(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": msgInvalidToken})
			c.Abort()
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// bearerToken toma la credencial que sigue al esquema, sea cual sea el esquema.
// Sin credencial devuelve "" y el middleware responde 401.
func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
