package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/security"
	"storefront/internal/service"
)

const currentAccountKey = "current_account"

// AccountResolver turns a token subject into an active account.
type AccountResolver interface {
	Account(ctx context.Context, id string) (models.Account, error)
}

func Auth(secret string, accounts AccountResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		account, err := accounts.Account(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, service.ErrUserSuspended) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Account suspended"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Account not found"})
			return
		}

		c.Set(currentAccountKey, account)
		c.Next()
	}
}

// CurrentAccount returns the account Auth attached to the request.
func CurrentAccount(c *gin.Context) (models.Account, bool) {
	v, exists := c.Get(currentAccountKey)
	if !exists {
		return models.Account{}, false
	}
	account, ok := v.(models.Account)
	return account, ok
}
