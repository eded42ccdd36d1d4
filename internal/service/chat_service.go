package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/repository"
	"github.com/avelichko/taskbroker-backend/internal/validation"
)

// ChatRepository описывает взаимодействие сервиса с хранилищем чатов.
type ChatRepository interface {
	GetRoomByID(ctx context.Context, id uuid.UUID) (*models.ChatRoom, error)
	GetRoomByOrderAndExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.ChatRoom, error)
	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	ListRoomsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ChatRoomView, error)
	AddMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.Message, error)
	MarkRead(ctx context.Context, roomID, userID uuid.UUID) error
	CountUnread(ctx context.Context, roomID, userID uuid.UUID) (int, error)
}

// OrderGetter отдаёт заказ для проверки владения при создании комнаты.
type OrderGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// ChatService содержит бизнес-логику чатов.
type ChatService struct {
	repo   ChatRepository
	orders OrderGetter
	fanout Fanout
}

// NewChatService создаёт новый сервис чатов.
func NewChatService(repo ChatRepository, orders OrderGetter, fanout Fanout) *ChatService {
	return &ChatService{repo: repo, orders: orders, fanout: fanout}
}

// GetOrCreateRoom возвращает комнату пары (заказ, исполнитель), создавая
// её при первом обращении. Создать комнату может только владелец заказа
// либо сам исполнитель (когда уже назначен). Проигранная гонка на
// вставке не ошибка: операция деградирует до чтения выигравшей строки —
// единственное место в системе, где запись умышленно превращается в
// чтение.
func (s *ChatService) GetOrCreateRoom(ctx context.Context, orderID, executorID, callerID uuid.UUID) (*models.ChatRoom, error) {
	room, err := s.repo.GetRoomByOrderAndExecutor(ctx, orderID, executorID)
	if err == nil {
		if !room.IsParticipant(callerID) {
			return nil, apperror.ErrForbidden
		}
		return room, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != callerID && callerID != executorID {
		return nil, apperror.Forbidden("создать чат может только владелец заказа")
	}
	if callerID == executorID && (order.ExecutorID == nil || *order.ExecutorID != executorID) {
		return nil, apperror.Forbidden("исполнитель не назначен на заказ")
	}

	room = &models.ChatRoom{
		OrderID:    orderID,
		ClientID:   order.ClientID,
		ExecutorID: executorID,
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomExists) {
			return s.repo.GetRoomByOrderAndExecutor(ctx, orderID, executorID)
		}
		return nil, err
	}

	return room, nil
}

// EnsureRoom — как GetOrCreateRoom, но для уже загруженного заказа.
// Вызывается машиной состояний заказа внутри её транзакции.
func (s *ChatService) EnsureRoom(ctx context.Context, order *models.Order, executorID uuid.UUID) (*models.ChatRoom, error) {
	room, err := s.repo.GetRoomByOrderAndExecutor(ctx, order.ID, executorID)
	if err == nil {
		return room, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	room = &models.ChatRoom{
		OrderID:    order.ID,
		ClientID:   order.ClientID,
		ExecutorID: executorID,
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomExists) {
			return s.repo.GetRoomByOrderAndExecutor(ctx, order.ID, executorID)
		}
		return nil, err
	}

	return room, nil
}

// FindRoom возвращает комнату пары, не создавая её.
func (s *ChatService) FindRoom(ctx context.Context, orderID, executorID uuid.UUID) (*models.ChatRoom, error) {
	return s.repo.GetRoomByOrderAndExecutor(ctx, orderID, executorID)
}

// PostSystemMessage добавляет системное сообщение от имени участника
// события. Используется переходами заказа и спора.
func (s *ChatService) PostSystemMessage(ctx context.Context, roomID, authorID uuid.UUID, content string) error {
	msg := &models.Message{
		RoomID:   roomID,
		SenderID: authorID,
		Content:  content,
		IsSystem: true,
	}
	return s.repo.AddMessage(ctx, msg)
}

// SendMessageInput описывает входные данные отправки сообщения.
type SendMessageInput struct {
	RoomID      uuid.UUID
	SenderID    uuid.UUID
	Content     string
	Attachments []string
}

// SendMessage сохраняет сообщение и уведомляет собеседника.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if in.Content == "" && len(in.Attachments) == 0 {
		return nil, apperror.BadRequest("сообщение не может быть пустым")
	}
	if in.Content != "" {
		if err := validation.ValidateMessageContent(in.Content); err != nil {
			return nil, apperror.BadRequest(err.Error())
		}
	}

	room, err := s.repo.GetRoomByID(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(in.SenderID) {
		return nil, apperror.Forbidden("вы не участник этого чата")
	}

	msg := &models.Message{
		RoomID:      in.RoomID,
		SenderID:    in.SenderID,
		Content:     in.Content,
		Attachments: pq.StringArray(in.Attachments),
	}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	// Уведомляется только собеседник.
	s.fanout.NotifyUser(ctx, room.OtherParticipant(in.SenderID), Event{
		Type:    models.NotificationTypeNewMessage,
		Title:   "Новое сообщение",
		Body:    truncate(in.Content, 120),
		OrderID: &room.OrderID,
	})

	return msg, nil
}

// ListMyRooms возвращает комнаты пользователя с производными проекциями.
func (s *ChatService) ListMyRooms(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ChatRoomView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListRoomsByUser(ctx, userID, limit, offset)
}

// ListMessages возвращает сообщения комнаты участнику.
func (s *ChatService) ListMessages(ctx context.Context, roomID, userID uuid.UUID, limit, offset int) ([]models.Message, error) {
	room, err := s.repo.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(userID) {
		return nil, apperror.Forbidden("вы не участник этого чата")
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListMessages(ctx, roomID, limit, offset)
}

// MarkRead помечает прочитанными входящие сообщения пользователя.
func (s *ChatService) MarkRead(ctx context.Context, roomID, userID uuid.UUID) error {
	room, err := s.repo.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsParticipant(userID) {
		return apperror.Forbidden("вы не участник этого чата")
	}

	return s.repo.MarkRead(ctx, roomID, userID)
}

// truncate укорачивает строку для превью уведомления.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return fmt.Sprintf("%s…", string(runes[:max]))
}
