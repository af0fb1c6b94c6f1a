package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vistapay/merchant-radar/internal/logging"
	"github.com/vistapay/merchant-radar/internal/metrics"
	"github.com/vistapay/merchant-radar/internal/validation"
)

// Handler provides the HTTP login endpoint.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new auth handler.
func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
// Success: 200 {token, user:{username, name}}.
// Missing fields: 400. Bad credentials: 401. No token leaves the server
// on either failure path.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	req.Username = validation.SanitizeString(req.Username, validation.MaxStringLength)
	if errs := validation.Validate(
		validation.MaxLength("password", req.Password, validation.MaxStringLength),
	); len(errs) > 0 {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.Error()})
		return
	}

	token, user, err := h.manager.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, ErrMissingFields):
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrInvalidCredentials):
		metrics.LoginAttemptsTotal.WithLabelValues("bad_credentials").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case err != nil:
		logging.L(c.Request.Context()).Error("login failed", "error", err)
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"username": user.Username,
			"name":     user.Name,
		},
	})
}

// Logout handles POST /auth/logout. The bearer token that authenticated
// the request is revoked; any later request with it gets 401.
func (h *Handler) Logout(c *gin.Context) {
	h.manager.Revoke(c.GetHeader("Authorization"))
	logging.L(c.Request.Context()).Info("session revoked", "user", GetUsername(c))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
