package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/repository"
)

type mockChatRepo struct {
	mock.Mock
}

func (m *mockChatRepo) GetRoomByID(ctx context.Context, id uuid.UUID) (*models.ChatRoom, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *mockChatRepo) GetRoomByOrderAndExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.ChatRoom, error) {
	args := m.Called(ctx, orderID, executorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *mockChatRepo) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	args := m.Called(ctx, room)
	if args.Error(0) == nil {
		room.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockChatRepo) ListRoomsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ChatRoomView, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.ChatRoomView), args.Error(1)
}

func (m *mockChatRepo) AddMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	if args.Error(0) == nil {
		msg.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockChatRepo) ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit, offset)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *mockChatRepo) MarkRead(ctx context.Context, roomID, userID uuid.UUID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *mockChatRepo) CountUnread(ctx context.Context, roomID, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Int(0), args.Error(1)
}

func newChatService() (*ChatService, *mockChatRepo, *mockOrderRepo, *fakeFanout) {
	repo := new(mockChatRepo)
	orders := new(mockOrderRepo)
	fanout := newFakeFanout()
	svc := NewChatService(repo, orders, fanout)
	return svc, repo, orders, fanout
}

func TestChatService_GetOrCreateRoom_CreatesOnFirstCall(t *testing.T) {
	svc, repo, orders, _ := newChatService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()

	order := &models.Order{ID: orderID, ClientID: clientID, ExecutorID: &executorID}

	repo.On("GetRoomByOrderAndExecutor", ctx, orderID, executorID).Return(nil, apperror.ErrRoomNotFound)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	repo.On("CreateRoom", ctx, mock.AnythingOfType("*models.ChatRoom")).Return(nil)

	room, err := svc.GetOrCreateRoom(ctx, orderID, executorID, clientID)

	assert.NoError(t, err)
	assert.Equal(t, clientID, room.ClientID)
	assert.Equal(t, executorID, room.ExecutorID)
}

func TestChatService_GetOrCreateRoom_ReturnsExisting(t *testing.T) {
	svc, repo, _, _ := newChatService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	existing := &models.ChatRoom{ID: uuid.New(), OrderID: orderID, ClientID: clientID, ExecutorID: executorID}

	repo.On("GetRoomByOrderAndExecutor", ctx, orderID, executorID).Return(existing, nil)

	room, err := svc.GetOrCreateRoom(ctx, orderID, executorID, executorID)
	assert.NoError(t, err)
	assert.Equal(t, existing.ID, room.ID)
}

func TestChatService_GetOrCreateRoom_Stranger(t *testing.T) {
	svc, repo, orders, _ := newChatService()
	ctx := context.Background()

	executorID := uuid.New()
	orderID := uuid.New()
	order := &models.Order{ID: orderID, ClientID: uuid.New(), ExecutorID: &executorID}

	repo.On("GetRoomByOrderAndExecutor", ctx, orderID, executorID).Return(nil, apperror.ErrRoomNotFound)
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.GetOrCreateRoom(ctx, orderID, executorID, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
}

func TestChatService_GetOrCreateRoom_LostRace(t *testing.T) {
	svc, repo, orders, _ := newChatService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	order := &models.Order{ID: orderID, ClientID: clientID, ExecutorID: &executorID}
	winner := &models.ChatRoom{ID: uuid.New(), OrderID: orderID, ClientID: clientID, ExecutorID: executorID}

	// Первый lookup промахивается, вставка проигрывает гонку, повторный
	// lookup возвращает выигравшую строку.
	repo.On("GetRoomByOrderAndExecutor", ctx, orderID, executorID).Return(nil, apperror.ErrRoomNotFound).Once()
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	repo.On("CreateRoom", ctx, mock.AnythingOfType("*models.ChatRoom")).Return(repository.ErrRoomExists)
	repo.On("GetRoomByOrderAndExecutor", ctx, orderID, executorID).Return(winner, nil)

	room, err := svc.GetOrCreateRoom(ctx, orderID, executorID, clientID)
	assert.NoError(t, err)
	assert.Equal(t, winner.ID, room.ID)
}

func TestChatService_EnsureRoom_LostRace(t *testing.T) {
	svc, repo, _, _ := newChatService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	order := &models.Order{ID: orderID, ClientID: clientID, ExecutorID: &executorID}
	winner := &models.ChatRoom{ID: uuid.New(), OrderID: orderID, ClientID: clientID, ExecutorID: executorID}

	// EnsureRoom работает внутри транзакции машины состояний: проигранная
	// вставка не должна валить транзакцию, операция перечитывает
	// выигравшую строку.
	repo.On("GetRoomByOrderAndExecutor", ctx, orderID, executorID).Return(nil, apperror.ErrRoomNotFound).Once()
	repo.On("CreateRoom", ctx, mock.AnythingOfType("*models.ChatRoom")).Return(repository.ErrRoomExists)
	repo.On("GetRoomByOrderAndExecutor", ctx, orderID, executorID).Return(winner, nil)

	room, err := svc.EnsureRoom(ctx, order, executorID)
	assert.NoError(t, err)
	assert.Equal(t, winner.ID, room.ID)
}

// memChatRepo эмулирует уникальный индекс (order_id, executor_id) для
// конкурентного сценария, который на mock.Mock не выразить.
type memChatRepo struct {
	mockChatRepo

	mu    sync.Mutex
	rooms map[string]*models.ChatRoom
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{rooms: make(map[string]*models.ChatRoom)}
}

func key(orderID, executorID uuid.UUID) string {
	return orderID.String() + "/" + executorID.String()
}

func (r *memChatRepo) GetRoomByOrderAndExecutor(_ context.Context, orderID, executorID uuid.UUID) (*models.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[key(orderID, executorID)]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}
	return room, nil
}

func (r *memChatRepo) CreateRoom(_ context.Context, room *models.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(room.OrderID, room.ExecutorID)
	if _, ok := r.rooms[k]; ok {
		return repository.ErrRoomExists
	}
	room.ID = uuid.New()
	r.rooms[k] = room
	return nil
}

func TestChatService_GetOrCreateRoom_Concurrent(t *testing.T) {
	repo := newMemChatRepo()
	orders := new(mockOrderRepo)
	svc := NewChatService(repo, orders, newFakeFanout())

	clientID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	order := &models.Order{ID: orderID, ClientID: clientID, ExecutorID: &executorID}
	orders.On("GetByID", mock.Anything, orderID).Return(order, nil)

	const workers = 50
	results := make([]*models.ChatRoom, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetOrCreateRoom(context.Background(), orderID, executorID, clientID)
		}(i)
	}
	wg.Wait()

	// Все 50 вызовов получают одну и ту же комнату без единой ошибки.
	for i := 0; i < workers; i++ {
		assert.NoError(t, errs[i])
		assert.NotNil(t, results[i])
		assert.Equal(t, results[0].ID, results[i].ID)
	}
	assert.Len(t, repo.rooms, 1)
}

func TestChatService_SendMessage_NotifiesOtherParty(t *testing.T) {
	svc, repo, _, fanout := newChatService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	roomID := uuid.New()
	orderID := uuid.New()
	room := &models.ChatRoom{ID: roomID, OrderID: orderID, ClientID: clientID, ExecutorID: executorID}

	repo.On("GetRoomByID", ctx, roomID).Return(room, nil)
	repo.On("AddMessage", ctx, mock.AnythingOfType("*models.Message")).Return(nil)

	msg, err := svc.SendMessage(ctx, SendMessageInput{
		RoomID:   roomID,
		SenderID: clientID,
		Content:  "Добрый день, как продвигается работа?",
	})

	assert.NoError(t, err)
	assert.NotNil(t, msg)
	assert.False(t, msg.IsSystem)

	// Отправитель себя не уведомляет.
	assert.Empty(t, fanout.eventsFor(clientID))
	events := fanout.eventsFor(executorID)
	assert.Len(t, events, 1)
	assert.Equal(t, models.NotificationTypeNewMessage, events[0].Type)
}

func TestChatService_SendMessage_Empty(t *testing.T) {
	svc, _, _, _ := newChatService()

	_, err := svc.SendMessage(context.Background(), SendMessageInput{
		RoomID:   uuid.New(),
		SenderID: uuid.New(),
	})
	assert.True(t, apperror.IsBadRequest(err))
}

func TestChatService_SendMessage_NotParticipant(t *testing.T) {
	svc, repo, _, _ := newChatService()
	ctx := context.Background()

	roomID := uuid.New()
	room := &models.ChatRoom{ID: roomID, ClientID: uuid.New(), ExecutorID: uuid.New()}
	repo.On("GetRoomByID", ctx, roomID).Return(room, nil)

	_, err := svc.SendMessage(ctx, SendMessageInput{
		RoomID:   roomID,
		SenderID: uuid.New(),
		Content:  "привет",
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestChatService_PostSystemMessage(t *testing.T) {
	svc, repo, _, fanout := newChatService()
	ctx := context.Background()

	roomID := uuid.New()
	authorID := uuid.New()

	repo.On("AddMessage", ctx, mock.MatchedBy(func(msg *models.Message) bool {
		return msg.IsSystem && msg.RoomID == roomID && msg.SenderID == authorID
	})).Return(nil)

	err := svc.PostSystemMessage(ctx, roomID, authorID, "Исполнитель выбран.")
	assert.NoError(t, err)
	// Системные сообщения не порождают уведомлений.
	assert.Empty(t, fanout.eventsFor(authorID))
}

func TestChatService_ListMessages_ParticipantOnly(t *testing.T) {
	svc, repo, _, _ := newChatService()
	ctx := context.Background()

	roomID := uuid.New()
	room := &models.ChatRoom{ID: roomID, ClientID: uuid.New(), ExecutorID: uuid.New()}
	repo.On("GetRoomByID", ctx, roomID).Return(room, nil)

	_, err := svc.ListMessages(ctx, roomID, uuid.New(), 50, 0)
	assert.True(t, apperror.IsForbidden(err))
}

func TestChatService_Truncate(t *testing.T) {
	assert.Equal(t, "привет", truncate("привет", 120))

	long := make([]rune, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, 'ж')
	}
	got := truncate(string(long), 120)
	assert.Equal(t, 121, len([]rune(got)))
}
