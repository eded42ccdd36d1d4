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

// ReviewRepository отвечает за отзывы.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository создаёт новый экземпляр.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create сохраняет отзыв.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (order_id, reviewer_id, executor_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_visible, created_at, updated_at
	`
	err := common.Queryer(ctx, r.db).QueryRowxContext(ctx, query,
		review.OrderID, review.ReviewerID, review.ExecutorID, review.Rating, review.Comment).
		Scan(&review.ID, &review.IsVisible, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, "reviews_order_id_reviewer_id_key") {
			return apperror.Conflict("отзыв на этот заказ уже оставлен")
		}
		return fmt.Errorf("review repository: create %w", err)
	}
	return nil
}

// GetByID возвращает отзыв по идентификатору.
func (r *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	query := `SELECT * FROM reviews WHERE id = $1`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &review, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrReviewNotFound
		}
		return nil, fmt.Errorf("review repository: get by id %w", err)
	}
	return &review, nil
}

// Update переписывает оценку и комментарий.
func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	query := `UPDATE reviews SET rating = $2, comment = $3, updated_at = NOW() WHERE id = $1`
	if _, err := common.Queryer(ctx, r.db).ExecContext(ctx, query, review.ID, review.Rating, review.Comment); err != nil {
		return fmt.Errorf("review repository: update %w", err)
	}
	return nil
}

// Delete удаляет отзыв.
func (r *ReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := common.Queryer(ctx, r.db).ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("review repository: delete %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.ErrReviewNotFound
	}
	return nil
}

// SetVisibility включает или скрывает отзыв модерацией.
func (r *ReviewRepository) SetVisibility(ctx context.Context, id uuid.UUID, visible bool) error {
	query := `UPDATE reviews SET is_visible = $2, updated_at = NOW() WHERE id = $1`
	if _, err := common.Queryer(ctx, r.db).ExecContext(ctx, query, id, visible); err != nil {
		return fmt.Errorf("review repository: set visibility %w", err)
	}
	return nil
}

// VisibleStats возвращает сумму оценок и число видимых отзывов
// исполнителя. Среднее и округление считает сервис.
func (r *ReviewRepository) VisibleStats(ctx context.Context, executorID uuid.UUID) (int, int, error) {
	var stats struct {
		Total int `db:"total"`
		Count int `db:"count"`
	}
	query := `
		SELECT COALESCE(SUM(rating), 0) AS total, COUNT(*) AS count
		FROM reviews
		WHERE executor_id = $1 AND is_visible
	`
	if err := sqlx.GetContext(ctx, common.Queryer(ctx, r.db), &stats, query, executorID); err != nil {
		return 0, 0, fmt.Errorf("review repository: visible stats %w", err)
	}
	return stats.Total, stats.Count, nil
}

// ListByExecutor возвращает видимые отзывы об исполнителе.
func (r *ReviewRepository) ListByExecutor(ctx context.Context, executorID uuid.UUID, limit, offset int) ([]models.Review, error) {
	var reviews []models.Review
	query := `
		SELECT * FROM reviews
		WHERE executor_id = $1 AND is_visible
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := sqlx.SelectContext(ctx, common.Queryer(ctx, r.db), &reviews, query, executorID, limit, offset); err != nil {
		return nil, fmt.Errorf("review repository: list by executor %w", err)
	}
	return reviews, nil
}
