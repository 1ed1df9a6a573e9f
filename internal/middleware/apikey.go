package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader основной заголовок для передачи ключа администратора
const APIKeyHeader = "X-API-Key"

const apiKeyNameKey = "api_key_name"

// APIKeyGuard проверяет ключ администратора для служебных маршрутов
type APIKeyGuard struct {
	// keys карта ключ -> имя владельца, имя попадает в логи
	keys map[string]string
}

// NewAPIKeyGuard создаёт guard по набору ключей
func NewAPIKeyGuard(keys map[string]string) *APIKeyGuard {
	copied := make(map[string]string, len(keys))
	for k, v := range keys {
		if k != "" {
			copied[k] = v
		}
	}
	return &APIKeyGuard{keys: copied}
}

// Middleware возвращает обработчик gin. Ключ ищется в X-API-Key,
// затем в Authorization: Bearer, затем в query параметре api_key.
func (g *APIKeyGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := extractAPIKey(c)
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "API key required: use the X-API-Key header, Authorization: Bearer or the api_key query parameter",
			})
			return
		}

		name, ok := g.lookup(apiKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Invalid API key",
			})
			return
		}

		c.Set(apiKeyNameKey, name)
		c.Next()
	}
}

// lookup сравнивает ключ с каждым известным за постоянное время
func (g *APIKeyGuard) lookup(apiKey string) (string, bool) {
	var (
		found bool
		name  string
	)
	for key, keyName := range g.keys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			found = true
			name = keyName
		}
	}
	return name, found
}

func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.Query("api_key")
}

// RequireAPIKey middleware, пропускающий только запросы с известным ключом
func RequireAPIKey(keys map[string]string) gin.HandlerFunc {
	return NewAPIKeyGuard(keys).Middleware()
}

// GetAPIKeyName возвращает имя владельца ключа, прошедшего проверку
func GetAPIKeyName(c *gin.Context) string {
	return c.GetString(apiKeyNameKey)
}
