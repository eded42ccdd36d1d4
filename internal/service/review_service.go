package service

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/repository/common"
	"github.com/avelichko/taskbroker-backend/internal/validation"
)

// ReviewRepository описывает взаимодействие сервиса отзывов с хранилищем.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetVisibility(ctx context.Context, id uuid.UUID, visible bool) error
	VisibleStats(ctx context.Context, executorID uuid.UUID) (int, int, error)
	ListByExecutor(ctx context.Context, executorID uuid.UUID, limit, offset int) ([]models.Review, error)
}

// RatingUpdater пересчитанный агрегат записывает в профиль исполнителя.
type RatingUpdater interface {
	UpdateExecutorRating(ctx context.Context, userID uuid.UUID, rating float64, reviewCount int) error
}

// ReviewService — отзывы и агрегированный рейтинг исполнителя. Любая
// мутация отзыва и пересчёт агрегата идут в одной транзакции, поэтому
// рейтинг в профиле никогда не расходится с видимыми отзывами.
type ReviewService struct {
	tx     common.Transactor
	repo   ReviewRepository
	orders OrderRepository
	users  RatingUpdater
}

// NewReviewService создаёт новый сервис отзывов.
func NewReviewService(tx common.Transactor, repo ReviewRepository, orders OrderRepository, users RatingUpdater) *ReviewService {
	return &ReviewService{
		tx:     tx,
		repo:   repo,
		orders: orders,
		users:  users,
	}
}

// CreateReviewInput описывает новый отзыв.
type CreateReviewInput struct {
	OrderID    uuid.UUID
	ReviewerID uuid.UUID
	Rating     int
	Comment    *string
}

// CreateReview создаёт отзыв по завершённому заказу. Один отзыв на заказ
// от автора: дубликат ловится уникальным индексом и приходит как Conflict.
func (s *ReviewService) CreateReview(ctx context.Context, in CreateReviewInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperror.BadRequest("оценка должна быть от 1 до 5")
	}
	if err := validation.ValidateReviewComment(in.Comment); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	var review *models.Review
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusCompleted {
			return apperror.BadRequest("отзыв можно оставить только по завершённому заказу")
		}
		if order.ClientID != in.ReviewerID {
			return apperror.Forbidden("отзыв оставляет клиент заказа")
		}

		review = &models.Review{
			OrderID:    in.OrderID,
			ReviewerID: in.ReviewerID,
			ExecutorID: *order.ExecutorID,
			Rating:     in.Rating,
			Comment:    in.Comment,
			IsVisible:  true,
		}
		if err := s.repo.Create(ctx, review); err != nil {
			return err
		}

		return s.recalculate(ctx, review.ExecutorID)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// UpdateReview правит оценку или комментарий. Доступно только автору.
func (s *ReviewService) UpdateReview(ctx context.Context, reviewerID, reviewID uuid.UUID, rating int, comment *string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.BadRequest("оценка должна быть от 1 до 5")
	}
	if err := validation.ValidateReviewComment(comment); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	var review *models.Review
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		review, err = s.repo.GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if review.ReviewerID != reviewerID {
			return apperror.Forbidden("редактировать отзыв может только автор")
		}

		review.Rating = rating
		review.Comment = comment
		if err := s.repo.Update(ctx, review); err != nil {
			return err
		}

		return s.recalculate(ctx, review.ExecutorID)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// DeleteReview удаляет отзыв автора и пересчитывает рейтинг.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewerID, reviewID uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		review, err := s.repo.GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if review.ReviewerID != reviewerID {
			return apperror.Forbidden("удалить отзыв может только автор")
		}

		if err := s.repo.Delete(ctx, reviewID); err != nil {
			return err
		}
		return s.recalculate(ctx, review.ExecutorID)
	})
}

// SetVisibility — модераторское скрытие или возврат отзыва. Скрытый
// отзыв немедленно выпадает из агрегата.
func (s *ReviewService) SetVisibility(ctx context.Context, reviewID uuid.UUID, visible bool) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		review, err := s.repo.GetByID(ctx, reviewID)
		if err != nil {
			return err
		}

		if err := s.repo.SetVisibility(ctx, reviewID, visible); err != nil {
			return err
		}
		return s.recalculate(ctx, review.ExecutorID)
	})
}

// ListByExecutor возвращает видимые отзывы об исполнителе.
func (s *ReviewService) ListByExecutor(ctx context.Context, executorID uuid.UUID, limit, offset int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByExecutor(ctx, executorID, limit, offset)
}

// recalculate перечитывает видимые отзывы и пишет средний рейтинг,
// округлённый до двух знаков, в профиль исполнителя. При нуле отзывов
// рейтинг обнуляется.
func (s *ReviewService) recalculate(ctx context.Context, executorID uuid.UUID) error {
	sum, count, err := s.repo.VisibleStats(ctx, executorID)
	if err != nil {
		return err
	}

	var rating float64
	if count > 0 {
		rating = math.Round(float64(sum)/float64(count)*100) / 100
	}
	return s.users.UpdateExecutorRating(ctx, executorID, rating, count)
}
