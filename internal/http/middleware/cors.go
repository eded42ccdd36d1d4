package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

var corsAllowedHeaders = strings.Join([]string{
	"Authorization",
	"Content-Type",
	"Accept",
	"Origin",
	"X-Requested-With",
}, ", ")

var corsAllowedMethods = strings.Join([]string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}, ", ")

// corsMaxAgeSeconds кэширует preflight у браузера на 12 часов.
const corsMaxAgeSeconds = 12 * 60 * 60

// CORSMiddleware отражает Origin из списка allowedOrigins и закрывает
// preflight. Список фиксируется на старте, wildcard не поддерживается:
// API ходит с credentials, а `*` с ними несовместима.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		// Ответ зависит от Origin, кэши обязаны это учитывать.
		c.Header("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", corsAllowedMethods)
			c.Header("Access-Control-Allow-Headers", corsAllowedHeaders)
			c.Header("Access-Control-Max-Age", strconv.Itoa(corsMaxAgeSeconds))
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
