package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dado-auth/internal/domain"
	"dado-auth/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints /api/auth.
type AuthHandler struct {
	logger  *zap.Logger
	authSvc *service.AuthService
	jwtSvc  *service.JWTService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authSvc *service.AuthService, jwtSvc *service.JWTService) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		logger:  logger,
		authSvc: authSvc,
		jwtSvc:  jwtSvc,
	}
}

// userView es la proyección pública de una cuenta; nunca incluye hash ni secreto MFA.
type userView struct {
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	Verified   bool      `json:"verified"`
	MFAEnabled bool      `json:"mfaEnabled"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newUserView(account domain.Account) userView {
	return userView{
		Email:      account.Email,
		Username:   account.Username,
		Verified:   account.Verified,
		MFAEnabled: account.MFAEnabled,
		CreatedAt:  account.CreatedAt,
	}
}

// CheckUsername maneja POST /api/auth/check-username.
func (h *AuthHandler) CheckUsername(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	available, err := h.authSvc.CheckUsername(c.Request.Context(), req.Username)
	if err != nil {
		h.fail(c, err, "Error al comprobar el nombre de usuario")
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}

// CheckEmail maneja POST /api/auth/check-email.
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	available, err := h.authSvc.CheckEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err, "Error al comprobar el correo")
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}

// Register maneja POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !h.bind(c, &req) {
		return
	}
	uri, err := h.authSvc.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err, "Error en el registro")
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": uri})
}

// VerifyRegistration maneja POST /api/auth/verify-registration.
func (h *AuthHandler) VerifyRegistration(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Token string `json:"token" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	if err := h.authSvc.VerifyRegistration(c.Request.Context(), req.Email, req.Token); err != nil {
		h.fail(c, err, "Error al verificar el registro")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	result, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err, "Error en el login")
		return
	}
	if result.RequiresMFA {
		c.JSON(http.StatusOK, gin.H{"requiresMFA": true})
		return
	}

	token, ok := h.issueSession(c, result.Account)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": newUserView(result.Account)})
}

// VerifyMFA maneja POST /api/auth/verify-mfa.
func (h *AuthHandler) VerifyMFA(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Token string `json:"token" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	account, err := h.authSvc.VerifyMFA(c.Request.Context(), req.Email, req.Token)
	if err != nil {
		h.fail(c, err, "Error interno del servidor")
		return
	}

	token, ok := h.issueSession(c, account)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user": gin.H{
			"email":    account.Email,
			"username": account.Username,
		},
	})
}

// ForgotPassword maneja POST /api/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	if _, err := h.authSvc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err, "Error al procesar la solicitud")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ResetPassword maneja POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		Code        string `json:"code" binding:"required"`
		NewPassword string `json:"newPassword"`
	}
	if !h.bind(c, &req) {
		return
	}
	if err := h.authSvc.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		h.fail(c, err, "Error al actualizar la contraseña")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contraseña actualizada correctamente"})
}

// GetUser maneja GET /api/auth/user.
func (h *AuthHandler) GetUser(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgAccessDenied})
		return
	}
	account, err := h.authSvc.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, err, "Error al obtener datos del usuario")
		return
	}
	c.JSON(http.StatusOK, newUserView(account))
}

// UpdateUsername maneja PUT /api/auth/update-username.
func (h *AuthHandler) UpdateUsername(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgAccessDenied})
		return
	}
	var req struct {
		NewUsername string `json:"newUsername"`
	}
	if !h.bind(c, &req) {
		return
	}
	username, err := h.authSvc.UpdateUsername(c.Request.Context(), claims.UserID, req.NewUsername)
	if err != nil {
		h.fail(c, err, "Error actualizando usuario")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "newUsername": username})
}

// Logout maneja POST /api/auth/logout revocando el token presentado.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgAccessDenied})
		return
	}
	if err := h.jwtSvc.Revoke(c.Request.Context(), claims); err != nil {
		h.logger.Error("revoke session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al cerrar la sesión"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Datos incompletos"})
		return false
	}
	return true
}

func (h *AuthHandler) issueSession(c *gin.Context, account domain.Account) (string, bool) {
	if h.jwtSvc == nil {
		h.logger.Error("jwt not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno del servidor"})
		return "", false
	}
	token, err := h.jwtSvc.IssueSession(account.Email)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno del servidor"})
		return "", false
	}
	return token, true
}

// fail traduce los errores de servicio a status y mensaje; el resto es 500 con fallback.
func (h *AuthHandler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrMissingFields), errors.Is(err, service.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Datos incompletos"})
	case errors.Is(err, service.ErrInvalidUsername):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nombre de usuario inválido"})
	case errors.Is(err, service.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "La contraseña debe tener al menos 8 caracteres, una mayúscula y un número"})
	case errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nombre de usuario ya está en uso"})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ya existe una cuenta con este correo"})
	case errors.Is(err, service.ErrMFANotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"error": "MFA no configurado"})
	case errors.Is(err, service.ErrInvalidOrExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Código inválido o expirado"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Usuario no encontrado"})
	case errors.Is(err, service.ErrAccountNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": "Usuario no verificado"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Credenciales inválidas"})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Código inválido"})
	case errors.Is(err, service.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Demasiados intentos, inténtalo más tarde"})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Demasiadas solicitudes, inténtalo más tarde"})
	case errors.Is(err, service.ErrEmailSendFailure):
		h.logger.Error("email delivery failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
