package handler

import (
	"log/slog"
	"net/http"
	"time"

	"smartcity/config"
	"smartcity/internal/media"
	"smartcity/internal/model"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *service.AuthService
	uploader    uploader
	cookie      config.CookieConfig
	logger      *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, mediaHost media.Uploader, cookie config.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		uploader:    uploader{media: mediaHost, logger: logger},
		cookie:      cookie,
		logger:      logger,
	}
}

// Register accepts JSON or a multipart form with an optional avatar file.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	avatar := h.uploader.deferred(c, "avatar", media.FolderAvatars, 1)

	resp, err := h.authService.Register(c.Request.Context(), &req, avatar)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, resp.Token, h.authService.TokenLifetime())
	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, resp.Token, h.authService.TokenLifetime())
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// Logout clears the session cookie. The token itself stays valid until it
// expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, lifetime time.Duration) {
	maxAge := int(lifetime.Seconds())
	if lifetime < 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, maxAge, "/", "", h.cookie.Secure, true)
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
