package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"taskdash/internal/auth"
	"taskdash/internal/models"

	"github.com/gin-gonic/gin"
)

type SessionGate interface {
	CheckStatus(ctx context.Context) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Logout(ctx context.Context) error
	ClearError()
	Session() auth.Session
}

type TokenIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
}

type AuthHandler struct {
	gate   SessionGate
	tokens TokenIssuer
}

func NewAuthHandler(gate SessionGate, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{gate: gate, tokens: tokens}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password"`
}

type SessionResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token,omitempty"`
	TokenType   string       `json:"token_type,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "token_generation_failed",
			"message": "Failed to generate authentication token",
		})
		return
	}

	c.JSON(status, SessionResponse{
		User:        user,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   &expiresAt,
	})
}

// Status restores the session from the stored marker and hands out a fresh
// token when one exists.
func (h *AuthHandler) Status(c *gin.Context) {
	user, err := h.gate.CheckStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "session_unavailable",
			"message": err.Error(),
		})
		return
	}

	if user == nil {
		c.JSON(http.StatusOK, SessionResponse{})
		return
	}
	h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.gate.Session())
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	user, err := h.gate.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_credentials",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "login_failed",
			"message": err.Error(),
		})
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	user, err := h.gate.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "registration_failed",
			"message": err.Error(),
		})
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.gate.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "logout_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) ClearError(c *gin.Context) {
	h.gate.ClearError()
	c.Status(http.StatusNoContent)
}
