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

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockNotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *mockNotificationRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset, unreadOnly)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockNotificationRepo) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockNotificationRepo) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func TestNotificationService_MarkAsRead_OwnerOnly(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo)
	ctx := context.Background()

	id := uuid.New()
	notification := &models.Notification{ID: id, UserID: uuid.New()}
	repo.On("GetByID", ctx, id).Return(notification, nil)

	err := svc.MarkAsRead(ctx, id, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
	repo.AssertNotCalled(t, "MarkAsRead", ctx, id)
}

func TestNotificationService_MarkAsRead_Success(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo)
	ctx := context.Background()

	userID := uuid.New()
	id := uuid.New()
	notification := &models.Notification{ID: id, UserID: userID}
	repo.On("GetByID", ctx, id).Return(notification, nil)
	repo.On("MarkAsRead", ctx, id).Return(nil)

	err := svc.MarkAsRead(ctx, id, userID)
	assert.NoError(t, err)
}

func TestNotificationService_ListNotifications_ClampsLimit(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo)
	ctx := context.Background()

	userID := uuid.New()
	repo.On("List", ctx, userID, 20, 0, false).Return([]models.Notification{}, nil)

	_, err := svc.ListNotifications(ctx, userID, 500, -3, false)
	assert.NoError(t, err)
	repo.AssertCalled(t, "List", ctx, userID, 20, 0, false)
}
