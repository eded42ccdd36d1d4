package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/service"
)

// ChatHandler предоставляет HTTP слой чатов по заказам.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler создаёт хэндлер.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// GetOrCreateRoom обрабатывает POST /orders/:id/chat. Исполнитель
// открывает чат с собой, заказчик указывает executor_id.
func (h *ChatHandler) GetOrCreateRoom(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		ExecutorID *uuid.UUID `json:"executor_id"`
	}
	_ = c.ShouldBindJSON(&req)

	executorID := userID
	if req.ExecutorID != nil {
		executorID = *req.ExecutorID
	}

	room, err := h.chat.GetOrCreateRoom(c.Request.Context(), orderID, executorID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// ListRooms обрабатывает GET /chats.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	limit, offset := pagination(c)

	rooms, err := h.chat.ListMyRooms(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

// ListMessages обрабатывает GET /chats/:id/messages.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	limit, offset := pagination(c)

	messages, err := h.chat.ListMessages(c.Request.Context(), roomID, userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// SendMessage обрабатывает POST /chats/:id/messages.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		Content     string   `json:"content"`
		Attachments []string `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("некорректное тело запроса"))
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), service.SendMessageInput{
		RoomID:      roomID,
		SenderID:    userID,
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkRead обрабатывает POST /chats/:id/read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.chat.MarkRead(c.Request.Context(), roomID, userID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "сообщения отмечены прочитанными"})
}
