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

// UserRepository отвечает за пользователей, сессии и агрегаты исполнителей.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт новый экземпляр.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create сохраняет пользователя; для исполнителя сразу заводит профиль
// с нулевыми счётчиками.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	q := common.Queryer(ctx, r.db)

	query := `
		INSERT INTO users (email, username, password_hash, role, is_verified, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at, updated_at
	`
	if err := q.QueryRowxContext(ctx, query, user.Email, user.Username, user.PasswordHash, user.Role, user.IsVerified).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err, "") {
			return apperror.Conflict("email или имя пользователя уже заняты")
		}
		return fmt.Errorf("user repository: create %w", err)
	}

	if user.Role == models.RoleExecutor {
		if _, err := q.ExecContext(ctx, `INSERT INTO executor_profiles (user_id) VALUES ($1)`, user.ID); err != nil {
			return fmt.Errorf("user repository: create executor profile %w", err)
		}
	}

	return nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT * FROM users WHERE id = $1`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return &user, nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT * FROM users WHERE email = $1`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}
	return &user, nil
}

// UpdateLastLoginAt отмечает время входа.
func (r *UserRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	_, err := common.Queryer(ctx, r.db).ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("user repository: update last login %w", err)
	}
	return nil
}

// ListAdmins возвращает всех активных администраторов. Используется
// только для email рассылки по спорам; realtime оповещение админов идёт
// через топик, без выборки списка.
func (r *UserRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var admins []models.User
	query := `SELECT * FROM users WHERE role = $1 AND is_active ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, common.Queryer(ctx, r.db), &admins, query, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("user repository: list admins %w", err)
	}
	return admins, nil
}

// CanRespond проверяет право исполнителя откликаться: активный аккаунт,
// пройденная верификация и действующая подписка.
func (r *UserRepository) CanRespond(ctx context.Context, executorID uuid.UUID) (bool, error) {
	var allowed bool
	query := `
		SELECT is_active AND is_verified AND subscription_until IS NOT NULL AND subscription_until > NOW()
		FROM users
		WHERE id = $1 AND role = $2
	`
	err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &allowed, query, executorID, models.RoleExecutor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("user repository: can respond %w", err)
	}
	return allowed, nil
}

// GetExecutorProfile возвращает счётчики исполнителя.
func (r *UserRepository) GetExecutorProfile(ctx context.Context, userID uuid.UUID) (*models.ExecutorProfile, error) {
	var profile models.ExecutorProfile
	query := `SELECT * FROM executor_profiles WHERE user_id = $1`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("профиль исполнителя не найден")
		}
		return nil, fmt.Errorf("user repository: get executor profile %w", err)
	}
	return &profile, nil
}

// IncrementExecutorCounter увеличивает один из счётчиков профиля.
// Колонка подставляется из белого списка, значения извне не попадают.
func (r *UserRepository) IncrementExecutorCounter(ctx context.Context, userID uuid.UUID, counter string) error {
	switch counter {
	case "total_orders", "completed_orders", "disputed_orders":
	default:
		return fmt.Errorf("user repository: неизвестный счётчик %q", counter)
	}

	query := fmt.Sprintf(`UPDATE executor_profiles SET %s = %s + 1, updated_at = NOW() WHERE user_id = $1`, counter, counter)
	res, err := common.Queryer(ctx, r.db).ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("user repository: increment %s %w", counter, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("профиль исполнителя не найден")
	}
	return nil
}

// UpdateExecutorRating записывает пересчитанный рейтинг и число отзывов.
func (r *UserRepository) UpdateExecutorRating(ctx context.Context, userID uuid.UUID, rating float64, reviewCount int) error {
	query := `UPDATE executor_profiles SET rating = $2, review_count = $3, updated_at = NOW() WHERE user_id = $1`
	if _, err := common.Queryer(ctx, r.db).ExecContext(ctx, query, userID, rating, reviewCount); err != nil {
		return fmt.Errorf("user repository: update rating %w", err)
	}
	return nil
}

// CreateSession сохраняет refresh-сессию.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := common.Queryer(ctx, r.db).QueryRowxContext(ctx, query,
		session.UserID, session.RefreshToken, session.UserAgent, session.IPAddress, session.ExpiresAt).
		Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}
	return nil
}

// GetSessionByToken возвращает сессию по refresh токену.
func (r *UserRepository) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	var session models.Session
	query := `SELECT * FROM sessions WHERE refresh_token = $1 AND expires_at > NOW()`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &session, query, refreshToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, fmt.Errorf("user repository: get session %w", err)
	}
	return &session, nil
}

// DeleteSession удаляет сессию по refresh токену.
func (r *UserRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	if _, err := common.Queryer(ctx, r.db).ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken); err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}
	return nil
}
