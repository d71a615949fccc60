package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/service"
)

// Pinger is implemented by repositories backed by a remote database.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	accounts    repository.AccountRepository
}

func NewHandlerSet(log zerolog.Logger, accounts repository.AccountRepository, cfg *config.AppConfig) HandlerSet {
	return HandlerSet{
		log:         log,
		cfg:         cfg,
		authService: service.NewAuthService(accounts, cfg, log),
		accounts:    accounts,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.RegisterAccount)
		auth.POST("/login", h.Login)
		auth.POST("/google-login", h.GoogleLogin)
		auth.POST("/google-register", h.GoogleRegister)

		protected := auth.Group("")
		protected.Use(middleware.Auth(h.cfg.Security.JWTSecret, h.authService))
		protected.GET("/me", h.Me)
	}

	admin := router.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg.Security.JWTSecret, h.authService),
		middleware.RequireRoles(models.UserRoleAdmin),
	)
	admin.GET("/users", h.AdminListUsers)
}
