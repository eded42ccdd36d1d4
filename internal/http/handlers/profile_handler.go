package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
)

// ProfileProvider отдаёт публичные данные исполнителя.
type ProfileProvider interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetExecutorProfile(ctx context.Context, userID uuid.UUID) (*models.ExecutorProfile, error)
}

// ProfileHandler предоставляет публичный профиль исполнителя с
// агрегированным рейтингом.
type ProfileHandler struct {
	users ProfileProvider
}

// NewProfileHandler создаёт хэндлер.
func NewProfileHandler(users ProfileProvider) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// GetExecutor обрабатывает GET /executors/:id.
func (h *ProfileHandler) GetExecutor(c *gin.Context) {
	executorID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), executorID)
	if err != nil {
		c.Error(err)
		return
	}
	if user.Role != models.RoleExecutor {
		c.Error(apperror.NotFound("исполнитель не найден"))
		return
	}

	profile, err := h.users.GetExecutorProfile(c.Request.Context(), executorID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"profile": profile,
	})
}
