package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avelichko/taskbroker-backend/internal/http/middleware"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// currentUserID достаёт идентификатор пользователя, положенный в контекст
// AuthMiddleware. Отсутствие значения означает ошибку конфигурации роутера.
func currentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	return userID, nil
}

// currentUserRole возвращает роль из контекста запроса.
func currentUserRole(c *gin.Context) string {
	return c.GetString(middleware.ContextRoleKey)
}

// parseUUIDParam парсит path-параметр как UUID.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.BadRequest("неверный идентификатор в параметре " + name)
	}
	return id, nil
}

// pagination читает limit/offset из query с безопасными границами.
func pagination(c *gin.Context) (int, int) {
	limit := parseIntQuery(c, "limit", defaultPageLimit)
	offset := parseIntQuery(c, "offset", 0)

	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
