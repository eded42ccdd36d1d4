package models

import (
	"time"

	"github.com/google/uuid"
)

// Review описывает отзыв клиента об исполнителе после завершения заказа.
// Скрытые модерацией отзывы (IsVisible = false) не участвуют в рейтинге.
type Review struct {
	ID         uuid.UUID `db:"id" json:"id"`
	OrderID    uuid.UUID `db:"order_id" json:"order_id"`
	ReviewerID uuid.UUID `db:"reviewer_id" json:"reviewer_id"`
	ExecutorID uuid.UUID `db:"executor_id" json:"executor_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	IsVisible  bool      `db:"is_visible" json:"is_visible"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
