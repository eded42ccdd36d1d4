package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
)

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, review *models.Review) error {
	args := m.Called(ctx, review)
	if args.Error(0) == nil {
		review.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockReviewRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *mockReviewRepo) Update(ctx context.Context, review *models.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockReviewRepo) SetVisibility(ctx context.Context, id uuid.UUID, visible bool) error {
	args := m.Called(ctx, id, visible)
	return args.Error(0)
}

func (m *mockReviewRepo) VisibleStats(ctx context.Context, executorID uuid.UUID) (int, int, error) {
	args := m.Called(ctx, executorID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockReviewRepo) ListByExecutor(ctx context.Context, executorID uuid.UUID, limit, offset int) ([]models.Review, error) {
	args := m.Called(ctx, executorID, limit, offset)
	return args.Get(0).([]models.Review), args.Error(1)
}

type mockRatingUpdater struct {
	mock.Mock
}

func (m *mockRatingUpdater) UpdateExecutorRating(ctx context.Context, userID uuid.UUID, rating float64, reviewCount int) error {
	args := m.Called(ctx, userID, rating, reviewCount)
	return args.Error(0)
}

func newReviewService() (*ReviewService, *mockReviewRepo, *mockOrderRepo, *mockRatingUpdater) {
	repo := new(mockReviewRepo)
	orders := new(mockOrderRepo)
	users := new(mockRatingUpdater)
	svc := NewReviewService(fakeTx{}, repo, orders, users)
	return svc, repo, orders, users
}

func TestReviewService_CreateReview_Success(t *testing.T) {
	svc, repo, orders, users := newReviewService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()

	order := &models.Order{
		ID:         orderID,
		ClientID:   clientID,
		ExecutorID: &executorID,
		Status:     models.OrderStatusCompleted,
	}

	orders.On("GetByID", ctx, orderID).Return(order, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Review")).Return(nil)
	repo.On("VisibleStats", ctx, executorID).Return(5, 1, nil)
	users.On("UpdateExecutorRating", ctx, executorID, 5.0, 1).Return(nil)

	comment := "Отличная работа!"
	review, err := svc.CreateReview(ctx, CreateReviewInput{
		OrderID:    orderID,
		ReviewerID: clientID,
		Rating:     5,
		Comment:    &comment,
	})

	assert.NoError(t, err)
	assert.NotNil(t, review)
	assert.Equal(t, executorID, review.ExecutorID)
	assert.True(t, review.IsVisible)
	users.AssertCalled(t, "UpdateExecutorRating", ctx, executorID, 5.0, 1)
}

func TestReviewService_CreateReview_InvalidRating(t *testing.T) {
	svc, _, _, _ := newReviewService()
	ctx := context.Background()

	_, err := svc.CreateReview(ctx, CreateReviewInput{OrderID: uuid.New(), ReviewerID: uuid.New(), Rating: 0})
	assert.True(t, apperror.IsBadRequest(err))

	_, err = svc.CreateReview(ctx, CreateReviewInput{OrderID: uuid.New(), ReviewerID: uuid.New(), Rating: 6})
	assert.True(t, apperror.IsBadRequest(err))
}

func TestReviewService_CreateReview_OrderNotCompleted(t *testing.T) {
	svc, _, orders, _ := newReviewService()
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, Status: models.OrderStatusInProgress}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.CreateReview(ctx, CreateReviewInput{OrderID: orderID, ReviewerID: uuid.New(), Rating: 5})
	assert.True(t, apperror.IsBadRequest(err))
}

func TestReviewService_CreateReview_NotClient(t *testing.T) {
	svc, _, orders, _ := newReviewService()
	ctx := context.Background()

	executorID := uuid.New()
	orderID := uuid.New()
	order := &models.Order{
		ID:         orderID,
		ClientID:   uuid.New(),
		ExecutorID: &executorID,
		Status:     models.OrderStatusCompleted,
	}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	// Даже исполнитель не может оставить отзыв о самом себе.
	_, err := svc.CreateReview(ctx, CreateReviewInput{OrderID: orderID, ReviewerID: executorID, Rating: 5})
	assert.True(t, apperror.IsForbidden(err))
}

func TestReviewService_UpdateReview_AuthorOnly(t *testing.T) {
	svc, repo, _, _ := newReviewService()
	ctx := context.Background()

	reviewID := uuid.New()
	review := &models.Review{ID: reviewID, ReviewerID: uuid.New(), ExecutorID: uuid.New(), Rating: 5}
	repo.On("GetByID", ctx, reviewID).Return(review, nil)

	_, err := svc.UpdateReview(ctx, uuid.New(), reviewID, 1, nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestReviewService_UpdateReview_Recalculates(t *testing.T) {
	svc, repo, _, users := newReviewService()
	ctx := context.Background()

	reviewerID := uuid.New()
	executorID := uuid.New()
	reviewID := uuid.New()
	review := &models.Review{ID: reviewID, ReviewerID: reviewerID, ExecutorID: executorID, Rating: 5, IsVisible: true}

	repo.On("GetByID", ctx, reviewID).Return(review, nil)
	repo.On("Update", ctx, review).Return(nil)
	// 2 + 4 + 4 = 10 видимых баллов на 3 отзыва.
	repo.On("VisibleStats", ctx, executorID).Return(10, 3, nil)
	users.On("UpdateExecutorRating", ctx, executorID, 3.33, 3).Return(nil)

	got, err := svc.UpdateReview(ctx, reviewerID, reviewID, 2, nil)

	assert.NoError(t, err)
	assert.Equal(t, 2, got.Rating)
	users.AssertCalled(t, "UpdateExecutorRating", ctx, executorID, 3.33, 3)
}

func TestReviewService_DeleteReview_ZeroesRating(t *testing.T) {
	svc, repo, _, users := newReviewService()
	ctx := context.Background()

	reviewerID := uuid.New()
	executorID := uuid.New()
	reviewID := uuid.New()
	review := &models.Review{ID: reviewID, ReviewerID: reviewerID, ExecutorID: executorID, Rating: 5}

	repo.On("GetByID", ctx, reviewID).Return(review, nil)
	repo.On("Delete", ctx, reviewID).Return(nil)
	repo.On("VisibleStats", ctx, executorID).Return(0, 0, nil)
	users.On("UpdateExecutorRating", ctx, executorID, 0.0, 0).Return(nil)

	err := svc.DeleteReview(ctx, reviewerID, reviewID)

	assert.NoError(t, err)
	// Последний отзыв удалён, рейтинг обнуляется.
	users.AssertCalled(t, "UpdateExecutorRating", ctx, executorID, 0.0, 0)
}

func TestReviewService_SetVisibility_ExcludesHidden(t *testing.T) {
	svc, repo, _, users := newReviewService()
	ctx := context.Background()

	executorID := uuid.New()
	reviewID := uuid.New()
	review := &models.Review{ID: reviewID, ReviewerID: uuid.New(), ExecutorID: executorID, Rating: 1, IsVisible: true}

	repo.On("GetByID", ctx, reviewID).Return(review, nil)
	repo.On("SetVisibility", ctx, reviewID, false).Return(nil)
	// Единица скрыта, остаются две пятёрки.
	repo.On("VisibleStats", ctx, executorID).Return(10, 2, nil)
	users.On("UpdateExecutorRating", ctx, executorID, 5.0, 2).Return(nil)

	err := svc.SetVisibility(ctx, reviewID, false)

	assert.NoError(t, err)
	users.AssertCalled(t, "UpdateExecutorRating", ctx, executorID, 5.0, 2)
}

func TestReviewService_RatingRounding(t *testing.T) {
	// Средний балл округляется до двух знаков по обычным правилам.
	cases := []struct {
		sum      int
		count    int
		expected float64
	}{
		{10, 3, 3.33},
		{11, 3, 3.67},
		{14, 3, 4.67},
		{25, 6, 4.17},
		{5, 1, 5.0},
		{0, 0, 0.0},
	}

	for _, tc := range cases {
		svc, repo, _, users := newReviewService()
		ctx := context.Background()
		executorID := uuid.New()
		reviewID := uuid.New()
		review := &models.Review{ID: reviewID, ReviewerID: uuid.New(), ExecutorID: executorID, IsVisible: true}

		repo.On("GetByID", ctx, reviewID).Return(review, nil)
		repo.On("SetVisibility", ctx, reviewID, true).Return(nil)
		repo.On("VisibleStats", ctx, executorID).Return(tc.sum, tc.count, nil)
		users.On("UpdateExecutorRating", ctx, executorID, tc.expected, tc.count).Return(nil)

		err := svc.SetVisibility(ctx, reviewID, true)
		assert.NoError(t, err)
		users.AssertExpectations(t)
	}
}
