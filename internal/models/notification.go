package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы in-app уведомлений.
const (
	NotificationTypeResponseCreated  = "response_created"
	NotificationTypeExecutorSelected = "executor_selected"
	NotificationTypeOrderOnReview    = "order_on_review"
	NotificationTypeRevisionAsked    = "revision_requested"
	NotificationTypeOrderCompleted   = "order_completed"
	NotificationTypeNewMessage       = "new_message"
	NotificationTypeDisputeOpened    = "dispute_opened"
	NotificationTypeDisputeTaken     = "dispute_taken"
	NotificationTypeDisputeResolved  = "dispute_resolved"
	NotificationTypeEvidenceAdded    = "evidence_added"
)

// Notification описывает событие, сохранённое для пользователя.
type Notification struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Type      string     `db:"type" json:"type"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	OrderID   *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	DeepLink  *string    `db:"deep_link" json:"deep_link,omitempty"`
	IsRead    bool       `db:"is_read" json:"is_read"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
