package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/service"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type googleRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	GoogleID string `json:"googleId" binding:"required"`
	Picture  string `json:"picture"`
}

func (in googleRequest) input() service.GoogleInput {
	return service.GoogleInput{
		Email:    in.Email,
		Name:     in.Name,
		GoogleID: in.GoogleID,
		Picture:  in.Picture,
	}
}

func (h HandlerSet) RegisterAccount(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.authFailed(c, "register", &service.InputError{Reason: "Invalid request body"})
		return
	}

	result, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	h.respond(c, "register", http.StatusCreated, result, err)
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.authFailed(c, "login", &service.InputError{Reason: "Email and password are required"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	h.respond(c, "login", http.StatusOK, result, err)
}

func (h HandlerSet) GoogleLogin(c *gin.Context) {
	var req googleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.authFailed(c, "google_login", &service.InputError{Reason: "Google profile is incomplete"})
		return
	}

	result, err := h.authService.GoogleLogin(c.Request.Context(), req.input())
	h.respond(c, "google_login", http.StatusOK, result, err)
}

func (h HandlerSet) GoogleRegister(c *gin.Context) {
	var req googleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.authFailed(c, "google_register", &service.InputError{Reason: "Google profile is incomplete"})
		return
	}

	result, err := h.authService.GoogleRegister(c.Request.Context(), req.input())
	h.respond(c, "google_register", http.StatusCreated, result, err)
}

func (h HandlerSet) Me(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": h.authService.PublicUser(account),
	})
}

func (h HandlerSet) respond(c *gin.Context, op string, status int, result service.AuthResult, err error) {
	if err != nil {
		h.authFailed(c, op, err)
		return
	}
	metrics.RecordAuth(op, "success")
	c.JSON(status, gin.H{
		"token": result.Token,
		"user":  result.User,
	})
}

func (h HandlerSet) authFailed(c *gin.Context, op string, err error) {
	status, message, class := classify(err)
	metrics.RecordAuth(op, class)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		h.log.Error().Err(err).Str("operation", op).Msg("auth request failed")
	}
	c.JSON(status, gin.H{"message": message})
}

// classify maps a service error to its HTTP status, the user-facing
// message and a metrics label.
func classify(err error) (int, string, string) {
	var inputErr *service.InputError
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, inputErr.Reason, "invalid_input"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password", "invalid_credentials"
	case errors.Is(err, service.ErrUserSuspended):
		return http.StatusForbidden, "Account suspended", "suspended"
	case errors.Is(err, service.ErrGoogleNotLinked):
		return http.StatusNotFound, "No account found for this Google user. Please register first.", "not_registered"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "An account with this email already exists", "conflict"
	default:
		return http.StatusInternalServerError, "Something went wrong, please try again", "error"
	}
}
