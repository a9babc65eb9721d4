package v1

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const responderKeyCtx = "responder_key_index"

// APIKeyAuthMiddleware пропускает запросы ответчиков только с известным ключом
// из X-API-Key или Authorization: Bearer. Индекс ключа сохраняется в контексте запроса.
func APIKeyAuthMiddleware(keys []string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := requestAPIKey(c)
		if presented == "" {
			log.WithField("path", c.FullPath()).Warn("API key missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		idx := matchKey(keys, presented)
		if idx < 0 {
			log.WithFields(logrus.Fields{
				"path":      c.FullPath(),
				"client_ip": c.ClientIP(),
			}).Warn("Invalid API key provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		c.Set(responderKeyCtx, idx)
		c.Next()
	}
}

func requestAPIKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" {
		return key
	}
	if bearer, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(bearer)
	}
	return ""
}

// matchKey сравнивает ключи за постоянное время, -1 если совпадения нет
func matchKey(keys []string, presented string) int {
	found := -1
	for i, key := range keys {
		if key == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(presented)) == 1 && found < 0 {
			found = i
		}
	}
	return found
}
