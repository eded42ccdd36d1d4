package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
)

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Create(ctx context.Context, dispute *models.Dispute) error {
	args := m.Called(ctx, dispute)
	if args.Error(0) == nil {
		dispute.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Take(ctx context.Context, id, adminID uuid.UUID) error {
	args := m.Called(ctx, id, adminID)
	return args.Error(0)
}

func (m *mockDisputeRepo) UpdateAdminNotes(ctx context.Context, id uuid.UUID, notes string) error {
	args := m.Called(ctx, id, notes)
	return args.Error(0)
}

func (m *mockDisputeRepo) Resolve(ctx context.Context, d *models.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDisputeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) AddEvidence(ctx context.Context, evidence *models.DisputeEvidence) error {
	args := m.Called(ctx, evidence)
	if args.Error(0) == nil {
		evidence.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockDisputeRepo) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	args := m.Called(ctx, disputeID)
	return args.Get(0).([]models.DisputeEvidence), args.Error(1)
}

func newDisputeService() (*DisputeService, *mockDisputeRepo, *mockOrderRepo, *mockUserDirectory, *mockChatCoordinator, *fakeFanout) {
	repo := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	users := new(mockUserDirectory)
	chat := new(mockChatCoordinator)
	fanout := newFakeFanout()
	svc := NewDisputeService(fakeTx{}, repo, orders, users, chat, fanout)
	return svc, repo, orders, users, chat, fanout
}

func TestDisputeService_OpenDispute_Success(t *testing.T) {
	svc, repo, orders, users, chat, fanout := newDisputeService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	roomID := uuid.New()

	order := &models.Order{
		ID:         orderID,
		ClientID:   clientID,
		ExecutorID: &executorID,
		Title:      "Лендинг",
		Status:     models.OrderStatusInProgress,
	}
	room := &models.ChatRoom{ID: roomID, OrderID: orderID, ClientID: clientID, ExecutorID: executorID}

	orders.On("GetByIDForUpdate", ctx, orderID).Return(order, nil)
	orders.On("UpdateStatus", ctx, orderID, models.OrderStatusDisputed).Return(nil)
	users.On("IncrementExecutorCounter", ctx, executorID, "disputed_orders").Return(nil)
	chat.On("FindRoom", ctx, orderID, executorID).Return(room, nil)
	chat.On("PostSystemMessage", ctx, roomID, clientID, "Открыт спор: работа не сдана в срок").Return(nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Dispute")).Return(nil)

	dispute, err := svc.OpenDispute(ctx, clientID, orderID, "работа не сдана в срок")

	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, roomID, *dispute.RoomID)

	// Уведомляется контрагент и админы, письма уходят обеим сторонам.
	assert.Len(t, fanout.eventsFor(executorID), 1)
	assert.Empty(t, fanout.eventsFor(clientID))
	assert.Len(t, fanout.adminEvents, 1)
	assert.Equal(t, []string{"dispute_opened"}, fanout.emails[clientID])
	assert.Equal(t, []string{"dispute_opened"}, fanout.emails[executorID])
	assert.Equal(t, []string{"dispute_opened"}, fanout.adminEmails)
}

func TestDisputeService_OpenDispute_EmptyReason(t *testing.T) {
	svc, _, _, _, _, _ := newDisputeService()

	_, err := svc.OpenDispute(context.Background(), uuid.New(), uuid.New(), "")
	assert.True(t, apperror.IsBadRequest(err))
}

func TestDisputeService_OpenDispute_NotParticipant(t *testing.T) {
	svc, _, orders, _, _, _ := newDisputeService()
	ctx := context.Background()

	executorID := uuid.New()
	orderID := uuid.New()
	order := &models.Order{
		ID:         orderID,
		ClientID:   uuid.New(),
		ExecutorID: &executorID,
		Status:     models.OrderStatusInProgress,
	}
	orders.On("GetByIDForUpdate", ctx, orderID).Return(order, nil)

	_, err := svc.OpenDispute(ctx, uuid.New(), orderID, "причина")
	assert.True(t, apperror.IsForbidden(err))
}

func TestDisputeService_OpenDispute_WrongStatus(t *testing.T) {
	svc, _, orders, _, _, _ := newDisputeService()
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
	orders.On("GetByIDForUpdate", ctx, orderID).Return(order, nil)

	_, err := svc.OpenDispute(ctx, clientID, orderID, "причина")
	assert.True(t, apperror.IsBadRequest(err))
}

func TestDisputeService_AddEvidence_ResolvedDispute(t *testing.T) {
	svc, repo, _, _, _, _ := newDisputeService()
	ctx := context.Background()

	disputeID := uuid.New()
	dispute := &models.Dispute{ID: disputeID, Status: models.DisputeStatusResolved}
	repo.On("GetByIDForUpdate", ctx, disputeID).Return(dispute, nil)

	_, err := svc.AddEvidence(ctx, AddEvidenceInput{DisputeID: disputeID, UploaderID: uuid.New()})
	assert.True(t, apperror.IsBadRequest(err))
}

func TestDisputeService_AddEvidence_Success(t *testing.T) {
	svc, repo, orders, _, chat, fanout := newDisputeService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	disputeID := uuid.New()
	roomID := uuid.New()

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen, RoomID: &roomID}
	order := &models.Order{ID: orderID, ClientID: clientID, ExecutorID: &executorID, Title: "Лендинг", Status: models.OrderStatusDisputed}

	repo.On("GetByIDForUpdate", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	repo.On("AddEvidence", ctx, mock.AnythingOfType("*models.DisputeEvidence")).Return(nil)
	chat.On("PostSystemMessage", ctx, roomID, executorID, "Приложено доказательство: screenshot.png").Return(nil)

	evidence, err := svc.AddEvidence(ctx, AddEvidenceInput{
		DisputeID:  disputeID,
		UploaderID: executorID,
		FilePath:   "evidence/abc.png",
		FileName:   "screenshot.png",
		FileSize:   1024,
	})

	assert.NoError(t, err)
	assert.NotNil(t, evidence)
	// Уведомляется вторая сторона.
	assert.Len(t, fanout.eventsFor(clientID), 1)
	assert.Empty(t, fanout.eventsFor(executorID))
}

func TestDisputeService_TakeDispute_Success(t *testing.T) {
	svc, repo, orders, _, chat, fanout := newDisputeService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	adminID := uuid.New()
	orderID := uuid.New()
	disputeID := uuid.New()
	roomID := uuid.New()

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen, RoomID: &roomID}
	order := &models.Order{ID: orderID, ClientID: clientID, ExecutorID: &executorID, Title: "Лендинг"}

	repo.On("GetByIDForUpdate", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	repo.On("Take", ctx, disputeID, adminID).Return(nil)
	chat.On("PostSystemMessage", ctx, roomID, clientID, mock.AnythingOfType("string")).Return(nil)

	got, err := svc.TakeDispute(ctx, adminID, disputeID)

	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusUnderReview, got.Status)
	assert.Equal(t, adminID, *got.AdminID)
	assert.Len(t, fanout.eventsFor(clientID), 1)
	assert.Len(t, fanout.eventsFor(executorID), 1)
}

func TestDisputeService_TakeDispute_Reassign(t *testing.T) {
	svc, repo, orders, _, chat, _ := newDisputeService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	firstAdminID := uuid.New()
	secondAdminID := uuid.New()
	orderID := uuid.New()
	disputeID := uuid.New()
	roomID := uuid.New()

	dispute := &models.Dispute{
		ID:      disputeID,
		OrderID: orderID,
		Status:  models.DisputeStatusUnderReview,
		AdminID: &firstAdminID,
		RoomID:  &roomID,
	}
	order := &models.Order{ID: orderID, ClientID: clientID, ExecutorID: &executorID, Title: "Лендинг"}

	repo.On("GetByIDForUpdate", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	repo.On("Take", ctx, disputeID, secondAdminID).Return(nil)
	chat.On("PostSystemMessage", ctx, roomID, clientID, mock.AnythingOfType("string")).Return(nil)

	got, err := svc.TakeDispute(ctx, secondAdminID, disputeID)

	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusUnderReview, got.Status)
	assert.Equal(t, secondAdminID, *got.AdminID)
}

func TestDisputeService_TakeDispute_Resolved(t *testing.T) {
	svc, repo, _, _, _, _ := newDisputeService()
	ctx := context.Background()

	disputeID := uuid.New()
	dispute := &models.Dispute{ID: disputeID, Status: models.DisputeStatusResolved}
	repo.On("GetByIDForUpdate", ctx, disputeID).Return(dispute, nil)

	_, err := svc.TakeDispute(ctx, uuid.New(), disputeID)
	assert.True(t, apperror.IsBadRequest(err))
}

func TestDisputeService_ResolveDispute_FavorClient(t *testing.T) {
	svc, repo, orders, _, chat, fanout := newDisputeService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	adminID := uuid.New()
	orderID := uuid.New()
	disputeID := uuid.New()
	roomID := uuid.New()

	dispute := &models.Dispute{
		ID:      disputeID,
		OrderID: orderID,
		Status:  models.DisputeStatusUnderReview,
		AdminID: &adminID,
		RoomID:  &roomID,
	}
	order := &models.Order{
		ID:         orderID,
		ClientID:   clientID,
		ExecutorID: &executorID,
		Title:      "Лендинг",
		Status:     models.OrderStatusDisputed,
	}

	repo.On("GetByIDForUpdate", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByIDForUpdate", ctx, orderID).Return(order, nil)
	repo.On("Resolve", ctx, dispute).Return(nil)
	orders.On("UpdateStatus", ctx, orderID, models.OrderStatusCancelled).Return(nil)
	chat.On("PostSystemMessage", ctx, roomID, clientID, mock.AnythingOfType("string")).Return(nil)

	got, err := svc.ResolveDispute(ctx, adminID, disputeID, models.DisputeResolutionFavorClient, "работа не выполнена", nil)

	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolved, got.Status)
	assert.Equal(t, models.DisputeResolutionFavorClient, *got.Resolution)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Len(t, fanout.eventsFor(clientID), 1)
	assert.Len(t, fanout.eventsFor(executorID), 1)
}

func TestDisputeService_ResolveDispute_AdminNotes(t *testing.T) {
	svc, repo, orders, _, chat, _ := newDisputeService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	adminID := uuid.New()
	orderID := uuid.New()
	disputeID := uuid.New()
	roomID := uuid.New()

	dispute := &models.Dispute{
		ID:      disputeID,
		OrderID: orderID,
		Status:  models.DisputeStatusUnderReview,
		AdminID: &adminID,
		RoomID:  &roomID,
	}
	order := &models.Order{
		ID:         orderID,
		ClientID:   clientID,
		ExecutorID: &executorID,
		Title:      "Лендинг",
		Status:     models.OrderStatusDisputed,
	}

	repo.On("GetByIDForUpdate", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByIDForUpdate", ctx, orderID).Return(order, nil)
	repo.On("Resolve", ctx, dispute).Return(nil)
	orders.On("UpdateStatus", ctx, orderID, models.OrderStatusCancelled).Return(nil)
	chat.On("PostSystemMessage", ctx, roomID, clientID, mock.AnythingOfType("string")).Return(nil)

	adminNotes := "стороны предоставили переписку, решение в пользу клиента"
	got, err := svc.ResolveDispute(ctx, adminID, disputeID, models.DisputeResolutionFavorClient, "", &adminNotes)

	assert.NoError(t, err)
	assert.Equal(t, adminNotes, *got.AdminNotes)
	repo.AssertCalled(t, "Resolve", ctx, dispute)
}

func TestDisputeService_ResolveDispute_FavorExecutor(t *testing.T) {
	svc, repo, orders, users, chat, _ := newDisputeService()
	ctx := context.Background()

	clientID := uuid.New()
	executorID := uuid.New()
	adminID := uuid.New()
	orderID := uuid.New()
	disputeID := uuid.New()
	roomID := uuid.New()

	dispute := &models.Dispute{
		ID:      disputeID,
		OrderID: orderID,
		Status:  models.DisputeStatusUnderReview,
		AdminID: &adminID,
		RoomID:  &roomID,
	}
	order := &models.Order{
		ID:         orderID,
		ClientID:   clientID,
		ExecutorID: &executorID,
		Title:      "Лендинг",
		Status:     models.OrderStatusDisputed,
	}

	repo.On("GetByIDForUpdate", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByIDForUpdate", ctx, orderID).Return(order, nil)
	repo.On("Resolve", ctx, dispute).Return(nil)
	orders.On("Complete", ctx, orderID, mock.AnythingOfType("time.Time")).Return(nil)
	users.On("IncrementExecutorCounter", ctx, executorID, "completed_orders").Return(nil)
	chat.On("PostSystemMessage", ctx, roomID, clientID, mock.AnythingOfType("string")).Return(nil)

	got, err := svc.ResolveDispute(ctx, adminID, disputeID, models.DisputeResolutionFavorExecutor, "", nil)

	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolved, got.Status)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.NotNil(t, order.CompletedAt)
	users.AssertCalled(t, "IncrementExecutorCounter", ctx, executorID, "completed_orders")
}

func TestDisputeService_ResolveDispute_ForeignAdmin(t *testing.T) {
	svc, repo, _, _, _, _ := newDisputeService()
	ctx := context.Background()

	assignedAdmin := uuid.New()
	disputeID := uuid.New()
	dispute := &models.Dispute{
		ID:      disputeID,
		Status:  models.DisputeStatusUnderReview,
		AdminID: &assignedAdmin,
	}
	repo.On("GetByIDForUpdate", ctx, disputeID).Return(dispute, nil)

	_, err := svc.ResolveDispute(ctx, uuid.New(), disputeID, models.DisputeResolutionFavorClient, "", nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestDisputeService_ResolveDispute_InvalidResolution(t *testing.T) {
	svc, _, _, _, _, _ := newDisputeService()

	_, err := svc.ResolveDispute(context.Background(), uuid.New(), uuid.New(), "split", "", nil)
	assert.True(t, apperror.IsBadRequest(err))
}

func TestDisputeService_ResolveDispute_AlreadyResolved(t *testing.T) {
	svc, repo, _, _, _, _ := newDisputeService()
	ctx := context.Background()

	disputeID := uuid.New()
	resolvedAt := time.Now()
	dispute := &models.Dispute{ID: disputeID, Status: models.DisputeStatusResolved, ResolvedAt: &resolvedAt}
	repo.On("GetByIDForUpdate", ctx, disputeID).Return(dispute, nil)

	_, err := svc.ResolveDispute(ctx, uuid.New(), disputeID, models.DisputeResolutionFavorClient, "", nil)
	assert.True(t, apperror.IsBadRequest(err))
}

func TestDisputeService_GetDispute_ParticipantOnly(t *testing.T) {
	svc, repo, orders, _, _, _ := newDisputeService()
	ctx := context.Background()

	executorID := uuid.New()
	orderID := uuid.New()
	disputeID := uuid.New()

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen}
	order := &models.Order{ID: orderID, ClientID: uuid.New(), ExecutorID: &executorID}

	repo.On("GetByID", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	stranger := &models.User{ID: uuid.New(), Role: models.RoleClient}
	_, _, err := svc.GetDispute(ctx, stranger, disputeID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestDisputeService_GetDispute_Admin(t *testing.T) {
	svc, repo, _, _, _, _ := newDisputeService()
	ctx := context.Background()

	disputeID := uuid.New()
	dispute := &models.Dispute{ID: disputeID, OrderID: uuid.New(), Status: models.DisputeStatusOpen}

	repo.On("GetByID", ctx, disputeID).Return(dispute, nil)
	repo.On("ListEvidence", ctx, disputeID).Return([]models.DisputeEvidence{}, nil)

	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin}
	got, evidence, err := svc.GetDispute(ctx, admin, disputeID)
	assert.NoError(t, err)
	assert.Equal(t, disputeID, got.ID)
	assert.Empty(t, evidence)
}
