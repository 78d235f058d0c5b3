package http

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	metrics     *Metrics
	logger      *slog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, metrics *Metrics, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		metrics:     metrics,
		logger:      logger,
	}
}

func rejection(status int, message string) (int, gin.H) {
	return status, gin.H{"success": false, "message": message}
}

// Register handles first registration and re-authentication of a signed challenge
func (h *AuthHandlers) Register(c *gin.Context) {
	var req struct {
		PublicAddress string `json:"publicAddress" binding:"required"`
		Email         string `json:"email"`
		Signature     string `json:"signature"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(rejection(http.StatusBadRequest, "Invalid request"))
		return
	}

	var signature []byte
	if req.Signature != "" {
		var err error
		if signature, err = hex.DecodeString(req.Signature); err != nil {
			c.JSON(rejection(http.StatusBadRequest, "Invalid signature encoding"))
			return
		}
	}

	result, err := h.authService.Register(c.Request.Context(), req.PublicAddress, req.Email, signature)
	if err != nil {
		h.metrics.Outcome("register", "rejected")
		switch {
		case errors.Is(err, core.ErrInvalidPublicKey):
			c.JSON(rejection(http.StatusBadRequest, "Invalid public key"))
		case errors.Is(err, service.ErrInvalidEmail):
			c.JSON(rejection(http.StatusBadRequest, "A valid email is required"))
		case errors.Is(err, core.ErrSignatureInvalid):
			c.JSON(rejection(http.StatusUnauthorized, "Invalid signature"))
		default:
			h.logger.Error("register failed", slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		}
		return
	}

	if result.AlreadyRegistered {
		h.metrics.Outcome("register", "known")
	} else {
		h.metrics.Outcome("register", "created")
	}
	c.JSON(http.StatusOK, result)
}

// Login handles a returning-session login for a known key
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		ActivePublicKey string `json:"activePublicKey" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(rejection(http.StatusBadRequest, "Invalid request"))
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.ActivePublicKey)
	if err != nil {
		h.metrics.Outcome("login", "rejected")
		switch {
		case errors.Is(err, core.ErrInvalidPublicKey):
			c.JSON(rejection(http.StatusBadRequest, "Invalid public key"))
		case errors.Is(err, core.ErrUserNotFound):
			c.JSON(rejection(http.StatusNotFound, "unknown public key"))
		default:
			h.logger.Error("login failed", slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		}
		return
	}

	h.metrics.Outcome("login", "ok")
	c.JSON(http.StatusOK, result)
}

// Logout revokes the bearer token
func (h *AuthHandlers) Logout(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid authorization header"})
		return
	}

	err := h.authService.Logout(c.Request.Context(), token)
	switch {
	case err == nil, errors.Is(err, core.ErrTokenExpired):
		// Even if expired, we'll consider logout successful
		h.metrics.Outcome("logout", "ok")
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	case errors.Is(err, core.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
	default:
		h.logger.Error("logout failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
	}
}

// Me returns the identity behind the session token
func (h *AuthHandlers) Me(c *gin.Context) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":    userID,
		"publicKey": c.GetString(ctxPublicKey),
	})
}
