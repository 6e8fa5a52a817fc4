package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/au-lex/safeqly-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "role"
	ContextScopeKey  = "scope"
)

// AuthMiddleware проверяет JWT access токен пользовательского пространства.
// Админские токены сюда не проходят: пространства токенов разделены.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return requireScope(tokens, service.ScopeUser)
}

// AdminMiddleware проверяет JWT access токен админского пространства
// и роль администратора.
func AdminMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	scoped := requireScope(tokens, service.ScopeAdmin)
	return func(c *gin.Context) {
		scoped(c)
		if c.IsAborted() {
			return
		}

		if role := c.GetString(ContextRoleKey); role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "доступ запрещён"})
			return
		}
		c.Next()
	}
}

func requireScope(tokens *service.TokenManager, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		userID, role, tokenScope, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден"})
			return
		}
		if tokenScope != scope {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден"})
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Set(ContextScopeKey, tokenScope)
		c.Next()
	}
}
