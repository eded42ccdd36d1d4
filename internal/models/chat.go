package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ChatRoom описывает канал общения, привязанный ровно к одной паре
// (заказ, исполнитель); второй участник — клиент заказа. Уникальность
// пары обеспечивается индексом, конкурентное создание сходится к одной
// строке.
type ChatRoom struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	OrderID       uuid.UUID  `db:"order_id" json:"order_id"`
	ClientID      uuid.UUID  `db:"client_id" json:"client_id"`
	ExecutorID    uuid.UUID  `db:"executor_id" json:"executor_id"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// IsParticipant сообщает, состоит ли пользователь в комнате.
func (r *ChatRoom) IsParticipant(userID uuid.UUID) bool {
	return r.ClientID == userID || r.ExecutorID == userID
}

// OtherParticipant возвращает собеседника пользователя.
func (r *ChatRoom) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if r.ClientID == userID {
		return r.ExecutorID
	}
	return r.ClientID
}

// Message описывает сообщение в комнате. Системные сообщения хранятся
// вместе с пользовательскими: IsSystem = true, а автором выступает
// участник, от имени которого произошло событие.
type Message struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	RoomID      uuid.UUID      `db:"room_id" json:"room_id"`
	SenderID    uuid.UUID      `db:"sender_id" json:"sender_id"`
	Content     string         `db:"content" json:"content"`
	Attachments pq.StringArray `db:"attachments" json:"attachments,omitempty"`
	IsSystem    bool           `db:"is_system" json:"is_system"`
	IsRead      bool           `db:"is_read" json:"is_read"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// ChatRoomView — проекция комнаты для списков: последнее сообщение и
// количество непрочитанных пересчитываются на каждый запрос, без
// материализованных счётчиков.
type ChatRoomView struct {
	ChatRoom
	UnreadCount int     `db:"unread_count" json:"unread_count"`
	LastMessage *string `db:"last_message" json:"last_message,omitempty"`
}
