package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/repository/common"
)

// ErrRoomExists сигнализирует проигрыш гонки на создании комнаты.
// Сервис по нему перечитывает выигравшую строку.
var ErrRoomExists = errors.New("chat room already exists")

// ChatRepository отвечает за комнаты и сообщения.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository создаёт новый экземпляр.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// GetRoomByID возвращает комнату по идентификатору.
func (r *ChatRepository) GetRoomByID(ctx context.Context, id uuid.UUID) (*models.ChatRoom, error) {
	var room models.ChatRoom
	query := `SELECT * FROM chat_rooms WHERE id = $1`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &room, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrRoomNotFound
		}
		return nil, fmt.Errorf("chat repository: get room %w", err)
	}
	return &room, nil
}

// GetRoomByOrderAndExecutor возвращает комнату пары (заказ, исполнитель).
func (r *ChatRepository) GetRoomByOrderAndExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.ChatRoom, error) {
	var room models.ChatRoom
	query := `SELECT * FROM chat_rooms WHERE order_id = $1 AND executor_id = $2`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &room, query, orderID, executorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrRoomNotFound
		}
		return nil, fmt.Errorf("chat repository: get room by pair %w", err)
	}
	return &room, nil
}

// CreateRoom вставляет комнату. Конкурентная вставка той же пары
// возвращает ErrRoomExists — вызывающий обязан перечитать и вернуть
// выигравшую строку. Конфликт гасится через ON CONFLICT DO NOTHING,
// а не через ошибку 23505: метод вызывается и внутри открытой
// транзакции машины состояний, где ошибка уникальности оставила бы
// транзакцию в аварийном состоянии и сорвала перечитывание.
func (r *ChatRepository) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	query := `
		INSERT INTO chat_rooms (order_id, client_id, executor_id)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT chat_rooms_order_id_executor_id_key DO NOTHING
		RETURNING id, created_at
	`
	err := common.Queryer(ctx, r.db).QueryRowxContext(ctx, query, room.OrderID, room.ClientID, room.ExecutorID).
		Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoomExists
		}
		return fmt.Errorf("chat repository: create room %w", err)
	}
	return nil
}

// ListRoomsByUser возвращает комнаты пользователя с производными
// проекциями: последним сообщением и числом непрочитанных. Проекции
// считаются на каждый запрос и поэтому всегда согласованы со строками
// сообщений.
func (r *ChatRepository) ListRoomsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ChatRoomView, error) {
	var rooms []models.ChatRoomView
	query := `
		SELECT cr.*,
		       (SELECT COUNT(*) FROM messages m
		        WHERE m.room_id = cr.id AND NOT m.is_read AND m.sender_id <> $1) AS unread_count,
		       (SELECT m.content FROM messages m
		        WHERE m.room_id = cr.id ORDER BY m.created_at DESC LIMIT 1) AS last_message
		FROM chat_rooms cr
		WHERE cr.client_id = $1 OR cr.executor_id = $1
		ORDER BY cr.last_message_at DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`
	if err := sqlx.SelectContext(ctx, common.Queryer(ctx, r.db), &rooms, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("chat repository: list rooms %w", err)
	}
	return rooms, nil
}

// CountUnread возвращает число непрочитанных сообщений пользователя в комнате.
func (r *ChatRepository) CountUnread(ctx context.Context, roomID, userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM messages WHERE room_id = $1 AND NOT is_read AND sender_id <> $2`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &count, query, roomID, userID); err != nil {
		return 0, fmt.Errorf("chat repository: count unread %w", err)
	}
	return count, nil
}

// AddMessage сохраняет сообщение и сдвигает last_message_at комнаты.
func (r *ChatRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	q := common.Queryer(ctx, r.db)

	query := `
		INSERT INTO messages (room_id, sender_id, content, attachments, is_system)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_read, created_at
	`
	err := q.QueryRowxContext(ctx, query, msg.RoomID, msg.SenderID, msg.Content, msg.Attachments, msg.IsSystem).
		Scan(&msg.ID, &msg.IsRead, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("chat repository: add message %w", err)
	}

	if _, err := q.ExecContext(ctx, `UPDATE chat_rooms SET last_message_at = $2 WHERE id = $1`, msg.RoomID, msg.CreatedAt); err != nil {
		return fmt.Errorf("chat repository: touch room %w", err)
	}

	return nil
}

// ListMessages возвращает сообщения комнаты от новых к старым.
func (r *ChatRepository) ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	query := `SELECT * FROM messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := sqlx.SelectContext(ctx, common.Queryer(ctx, r.db), &messages, query, roomID, limit, offset); err != nil {
		return nil, fmt.Errorf("chat repository: list messages %w", err)
	}
	return messages, nil
}

// MarkRead массово помечает прочитанными адресованные пользователю
// сообщения комнаты.
func (r *ChatRepository) MarkRead(ctx context.Context, roomID, userID uuid.UUID) error {
	query := `UPDATE messages SET is_read = TRUE WHERE room_id = $1 AND sender_id <> $2 AND NOT is_read`
	if _, err := common.Queryer(ctx, r.db).ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("chat repository: mark read %w", err)
	}
	return nil
}
