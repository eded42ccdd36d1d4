package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/repository/common"
)

// OrderRepository отвечает за заказы и отклики.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository создаёт новый экземпляр.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CategoryExists проверяет существование рубрики.
func (r *OrderRepository) CategoryExists(ctx context.Context, categoryID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &exists, query, categoryID); err != nil {
		return false, fmt.Errorf("order repository: category exists %w", err)
	}
	return exists, nil
}

// Create сохраняет новый заказ в статусе NEW с нулевыми счётчиками.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (client_id, category_id, title, description, budget_min, budget_max, deadline_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, views_count, responses_count, created_at, updated_at
	`
	err := common.Queryer(ctx, r.db).QueryRowxContext(ctx, query,
		order.ClientID, order.CategoryID, order.Title, order.Description,
		order.BudgetMin, order.BudgetMax, order.DeadlineAt, order.Status).
		Scan(&order.ID, &order.ViewsCount, &order.ResponsesCount, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("order repository: create %w", err)
	}
	return nil
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := `SELECT * FROM orders WHERE id = $1`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository: get by id %w", err)
	}
	return &order, nil
}

// GetByIDForUpdate читает заказ с блокировкой строки. Всякая операция
// перехода берёт эту блокировку первой, чтобы пара конкурирующих
// переходов не прочитала одно исходное состояние.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := `SELECT * FROM orders WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository: get for update %w", err)
	}
	return &order, nil
}

// UpdateStatus переводит заказ в новый статус.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := common.Queryer(ctx, r.db).ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("order repository: update status %w", err)
	}
	return nil
}

// AssignExecutor фиксирует выбор исполнителя: назначает его, цену и
// срок, переводит заказ в работу и ставит отметку старта.
func (r *OrderRepository) AssignExecutor(ctx context.Context, id, executorID uuid.UUID, agreedPrice *float64, agreedDeadline *time.Time, startedAt time.Time) error {
	query := `
		UPDATE orders
		SET executor_id = $2, agreed_price = $3, agreed_deadline_at = $4,
		    status = $5, started_at = $6, updated_at = NOW()
		WHERE id = $1
	`
	_, err := common.Queryer(ctx, r.db).ExecContext(ctx, query,
		id, executorID, agreedPrice, agreedDeadline, models.OrderStatusInProgress, startedAt)
	if err != nil {
		return fmt.Errorf("order repository: assign executor %w", err)
	}
	return nil
}

// Complete помечает заказ завершённым.
func (r *OrderRepository) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	query := `UPDATE orders SET status = $2, completed_at = $3, updated_at = NOW() WHERE id = $1`
	if _, err := common.Queryer(ctx, r.db).ExecContext(ctx, query, id, models.OrderStatusCompleted, completedAt); err != nil {
		return fmt.Errorf("order repository: complete %w", err)
	}
	return nil
}

// Delete удаляет заказ; отклики каскадируются на уровне схемы.
func (r *OrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := common.Queryer(ctx, r.db).ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("order repository: delete %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.ErrOrderNotFound
	}
	return nil
}

// IncrementViews увеличивает счётчик просмотров. Вызывается вне
// транзакции чтения и никогда не блокирует его.
func (r *OrderRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE orders SET views_count = views_count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("order repository: increment views %w", err)
	}
	return nil
}

// ListByClient возвращает заказы клиента.
func (r *OrderRepository) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	query := `SELECT * FROM orders WHERE client_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := sqlx.SelectContext(ctx, common.Queryer(ctx, r.db), &orders, query, clientID, limit, offset); err != nil {
		return nil, fmt.Errorf("order repository: list by client %w", err)
	}
	return orders, nil
}

// ListByExecutor возвращает заказы, назначенные исполнителю.
func (r *OrderRepository) ListByExecutor(ctx context.Context, executorID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	query := `SELECT * FROM orders WHERE executor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := sqlx.SelectContext(ctx, common.Queryer(ctx, r.db), &orders, query, executorID, limit, offset); err != nil {
		return nil, fmt.Errorf("order repository: list by executor %w", err)
	}
	return orders, nil
}

// CreateResponse сохраняет отклик и увеличивает счётчик откликов заказа.
func (r *OrderRepository) CreateResponse(ctx context.Context, response *models.OrderResponse) error {
	q := common.Queryer(ctx, r.db)

	query := `
		INSERT INTO order_responses (order_id, executor_id, cover_letter, proposed_price, proposed_days)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_selected, created_at, updated_at
	`
	err := q.QueryRowxContext(ctx, query,
		response.OrderID, response.ExecutorID, response.CoverLetter, response.ProposedPrice, response.ProposedDays).
		Scan(&response.ID, &response.IsSelected, &response.CreatedAt, &response.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, "order_responses_order_id_executor_id_key") {
			return apperror.Conflict("отклик на этот заказ уже существует")
		}
		return fmt.Errorf("order repository: create response %w", err)
	}

	if _, err := q.ExecContext(ctx, `UPDATE orders SET responses_count = responses_count + 1 WHERE id = $1`, response.OrderID); err != nil {
		return fmt.Errorf("order repository: bump responses count %w", err)
	}

	return nil
}

// GetResponseByID возвращает отклик по идентификатору.
func (r *OrderRepository) GetResponseByID(ctx context.Context, id uuid.UUID) (*models.OrderResponse, error) {
	var response models.OrderResponse
	query := `SELECT * FROM order_responses WHERE id = $1`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &response, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrResponseNotFound
		}
		return nil, fmt.Errorf("order repository: get response %w", err)
	}
	return &response, nil
}

// GetResponseByOrderAndExecutor возвращает отклик исполнителя на заказ.
func (r *OrderRepository) GetResponseByOrderAndExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.OrderResponse, error) {
	var response models.OrderResponse
	query := `SELECT * FROM order_responses WHERE order_id = $1 AND executor_id = $2`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &response, query, orderID, executorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrResponseNotFound
		}
		return nil, fmt.Errorf("order repository: get response by pair %w", err)
	}
	return &response, nil
}

// ListResponses возвращает отклики на заказ.
func (r *OrderRepository) ListResponses(ctx context.Context, orderID uuid.UUID) ([]models.OrderResponse, error) {
	var responses []models.OrderResponse
	query := `SELECT * FROM order_responses WHERE order_id = $1 ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, common.Queryer(ctx, r.db), &responses, query, orderID); err != nil {
		return nil, fmt.Errorf("order repository: list responses %w", err)
	}
	return responses, nil
}

// MarkResponseSelected поднимает флаг выбранного отклика.
func (r *OrderRepository) MarkResponseSelected(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE order_responses SET is_selected = TRUE, updated_at = NOW() WHERE id = $1`
	if _, err := common.Queryer(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("order repository: mark selected %w", err)
	}
	return nil
}

// DeleteResponse удаляет отклик и уменьшает счётчик откликов заказа.
func (r *OrderRepository) DeleteResponse(ctx context.Context, id, orderID uuid.UUID) error {
	q := common.Queryer(ctx, r.db)

	res, err := q.ExecContext(ctx, `DELETE FROM order_responses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("order repository: delete response %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.ErrResponseNotFound
	}

	if _, err := q.ExecContext(ctx, `UPDATE orders SET responses_count = GREATEST(responses_count - 1, 0) WHERE id = $1`, orderID); err != nil {
		return fmt.Errorf("order repository: drop responses count %w", err)
	}

	return nil
}
