package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/avelichko/taskbroker-backend/internal/models"
)

// fakeTx выполняет функцию без настоящей транзакции.
type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeFanout копит отправленные события вместо доставки.
type fakeFanout struct {
	mu          sync.Mutex
	notified    map[uuid.UUID][]Event
	adminEvents []Event
	emails      map[uuid.UUID][]string
	adminEmails []string
}

func newFakeFanout() *fakeFanout {
	return &fakeFanout{
		notified: make(map[uuid.UUID][]Event),
		emails:   make(map[uuid.UUID][]string),
	}
}

func (f *fakeFanout) NotifyUser(_ context.Context, userID uuid.UUID, ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified[userID] = append(f.notified[userID], ev)
}

func (f *fakeFanout) NotifyAdmins(_ context.Context, ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminEvents = append(f.adminEvents, ev)
}

func (f *fakeFanout) EmailUser(_ context.Context, userID uuid.UUID, kind string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails[userID] = append(f.emails[userID], kind)
}

func (f *fakeFanout) EmailAdmins(_ context.Context, kind string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminEmails = append(f.adminEmails, kind)
}

func (f *fakeFanout) eventsFor(userID uuid.UUID) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notified[userID]
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) CategoryExists(ctx context.Context, categoryID uuid.UUID) (bool, error) {
	args := m.Called(ctx, categoryID)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepo) Create(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	if args.Error(0) == nil {
		order.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockOrderRepo) AssignExecutor(ctx context.Context, id, executorID uuid.UUID, agreedPrice *float64, agreedDeadline *time.Time, startedAt time.Time) error {
	args := m.Called(ctx, id, executorID, agreedPrice, agreedDeadline, startedAt)
	return args.Error(0)
}

func (m *mockOrderRepo) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	args := m.Called(ctx, id, completedAt)
	return args.Error(0)
}

func (m *mockOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOrderRepo) IncrementViews(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOrderRepo) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, clientID, limit, offset)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderRepo) ListByExecutor(ctx context.Context, executorID uuid.UUID, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, executorID, limit, offset)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderRepo) CreateResponse(ctx context.Context, response *models.OrderResponse) error {
	args := m.Called(ctx, response)
	if args.Error(0) == nil {
		response.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockOrderRepo) GetResponseByID(ctx context.Context, id uuid.UUID) (*models.OrderResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderResponse), args.Error(1)
}

func (m *mockOrderRepo) GetResponseByOrderAndExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.OrderResponse, error) {
	args := m.Called(ctx, orderID, executorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderResponse), args.Error(1)
}

func (m *mockOrderRepo) ListResponses(ctx context.Context, orderID uuid.UUID) ([]models.OrderResponse, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.OrderResponse), args.Error(1)
}

func (m *mockOrderRepo) MarkResponseSelected(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOrderRepo) DeleteResponse(ctx context.Context, id, orderID uuid.UUID) error {
	args := m.Called(ctx, id, orderID)
	return args.Error(0)
}

type mockUserDirectory struct {
	mock.Mock
}

func (m *mockUserDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserDirectory) CanRespond(ctx context.Context, executorID uuid.UUID) (bool, error) {
	args := m.Called(ctx, executorID)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserDirectory) IncrementExecutorCounter(ctx context.Context, userID uuid.UUID, counter string) error {
	args := m.Called(ctx, userID, counter)
	return args.Error(0)
}

type mockChatCoordinator struct {
	mock.Mock
}

func (m *mockChatCoordinator) EnsureRoom(ctx context.Context, order *models.Order, executorID uuid.UUID) (*models.ChatRoom, error) {
	args := m.Called(ctx, order, executorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *mockChatCoordinator) FindRoom(ctx context.Context, orderID, executorID uuid.UUID) (*models.ChatRoom, error) {
	args := m.Called(ctx, orderID, executorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *mockChatCoordinator) PostSystemMessage(ctx context.Context, roomID, authorID uuid.UUID, content string) error {
	args := m.Called(ctx, roomID, authorID, content)
	return args.Error(0)
}
