package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы заказа. Переходы разрешены только по графу жизненного цикла,
// который контролирует OrderService.
const (
	OrderStatusNew        = "new"
	OrderStatusInProgress = "in_progress"
	OrderStatusOnReview   = "on_review"
	OrderStatusRevision   = "revision"
	OrderStatusDisputed   = "disputed"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// Order описывает заказ на выполнение работы.
type Order struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ClientID         uuid.UUID  `db:"client_id" json:"client_id"`
	ExecutorID       *uuid.UUID `db:"executor_id" json:"executor_id,omitempty"`
	CategoryID       uuid.UUID  `db:"category_id" json:"category_id"`
	Title            string     `db:"title" json:"title"`
	Description      string     `db:"description" json:"description"`
	BudgetMin        *float64   `db:"budget_min" json:"budget_min,omitempty"`
	BudgetMax        *float64   `db:"budget_max" json:"budget_max,omitempty"`
	AgreedPrice      *float64   `db:"agreed_price" json:"agreed_price,omitempty"`
	DeadlineAt       *time.Time `db:"deadline_at" json:"deadline_at,omitempty"`
	AgreedDeadlineAt *time.Time `db:"agreed_deadline_at" json:"agreed_deadline_at,omitempty"`
	Status           string     `db:"status" json:"status"`
	ViewsCount       int        `db:"views_count" json:"views_count"`
	ResponsesCount   int        `db:"responses_count" json:"responses_count"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	StartedAt        *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// IsParticipant сообщает, является ли пользователь стороной заказа.
func (o *Order) IsParticipant(userID uuid.UUID) bool {
	if o.ClientID == userID {
		return true
	}
	return o.ExecutorID != nil && *o.ExecutorID == userID
}

// OrderResponse представляет отклик исполнителя на заказ.
// На пару (заказ, исполнитель) допускается не более одного отклика,
// на заказ — не более одного выбранного отклика. Выбранный отклик
// становится неизменяемым.
type OrderResponse struct {
	ID            uuid.UUID `db:"id" json:"id"`
	OrderID       uuid.UUID `db:"order_id" json:"order_id"`
	ExecutorID    uuid.UUID `db:"executor_id" json:"executor_id"`
	CoverLetter   string    `db:"cover_letter" json:"cover_letter"`
	ProposedPrice *float64  `db:"proposed_price" json:"proposed_price,omitempty"`
	ProposedDays  *int      `db:"proposed_days" json:"proposed_days,omitempty"`
	IsSelected    bool      `db:"is_selected" json:"is_selected"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Category описывает рубрику каталога, к которой привязывается заказ.
type Category struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
