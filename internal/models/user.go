package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей платформы.
const (
	RoleClient   = "client"
	RoleExecutor = "executor"
	RoleAdmin    = "admin"
)

// User описывает сущность пользователя платформы.
type User struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	Username          string     `db:"username" json:"username"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	Role              string     `db:"role" json:"role"`
	IsVerified        bool       `db:"is_verified" json:"is_verified"`
	SubscriptionUntil *time.Time `db:"subscription_until" json:"subscription_until,omitempty"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	LastLoginAt       *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ExecutorProfile хранит агрегированные счётчики исполнителя.
// Rating всегда равен среднему по видимым отзывам, округлённому до двух
// знаков (half-up), либо нулю при их отсутствии; пересчитывается
// синхронно в транзакции породившей мутации.
type ExecutorProfile struct {
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	TotalOrders     int       `db:"total_orders" json:"total_orders"`
	CompletedOrders int       `db:"completed_orders" json:"completed_orders"`
	DisputedOrders  int       `db:"disputed_orders" json:"disputed_orders"`
	Rating          float64   `db:"rating" json:"rating"`
	ReviewCount     int       `db:"review_count" json:"review_count"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Session представляет сохранённую сессию пользователя.
type Session struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	RefreshToken string    `db:"refresh_token" json:"refresh_token"`
	UserAgent    *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress    *string   `db:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
