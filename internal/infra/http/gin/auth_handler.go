package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"artisanchat/internal/app/dto"
	authsvc "artisanchat/internal/app/services/auth"
	domainuser "artisanchat/internal/domain/user"
)

type AuthHTTP interface {
	CreateSession(c *gin.Context)
	Logout(c *gin.Context)
	Me(c *gin.Context)
}

// AuthHandler manages bearer sessions. Identity verification (OTP and the
// like) lives in a separate service; this API exchanges a known username for
// a session token.
type AuthHandler struct {
	Service *authsvc.Service
	Users   domainuser.Repository
	Logger  *slog.Logger
}

type createSessionRequest struct {
	Username string `json:"username"`
}

func (h AuthHandler) CreateSession(c *gin.Context) {
	if h.Service == nil || h.Users == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := h.Users.ByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown username"})
			return
		}
		h.respondAuthError(c, err)
		return
	}
	result, err := h.Service.IssueSession(c.Request.Context(), user.ID)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewAuthResponse(result.User, result.Token))
}

func (h AuthHandler) Logout(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
		return
	}
	token := bearerTokenFromContext(c)
	if err := h.Service.Logout(c.Request.Context(), token); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("logout failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h AuthHandler) Me(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Users != nil {
		if user, err := h.Users.ByID(c.Request.Context(), domainuser.ID(principal.ID)); err == nil {
			c.JSON(http.StatusOK, dto.MapUserProfile(user))
			return
		}
	}
	c.JSON(http.StatusOK, dto.UserProfile{
		ID:       principal.ID,
		Username: principal.Username,
		FullName: principal.FullName,
	})
}

func (h AuthHandler) respondAuthError(c *gin.Context, err error) {
	if h.Logger != nil {
		h.Logger.Error("auth request failed", "error", err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "auth request failed"})
}

func bearerTokenFromContext(c *gin.Context) string {
	if p, ok := currentPrincipal(c); ok && p.Token != "" {
		return p.Token
	}
	return extractBearerToken(c.GetHeader("Authorization"))
}
