package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
)

// UUIDValidator отсекает запросы с невалидным UUID в path-параметре до
// входа в хэндлер. Ошибка уходит через общий ErrorHandler, тело ответа
// совпадает с остальными ошибками API.
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(paramName)); err != nil {
			c.Error(apperror.BadRequest("параметр " + paramName + " должен быть валидным UUID"))
			c.Abort()
			return
		}

		c.Next()
	}
}
