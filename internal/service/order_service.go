package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avelichko/taskbroker-backend/internal/email"
	"github.com/avelichko/taskbroker-backend/internal/goroutine"
	"github.com/avelichko/taskbroker-backend/internal/logger"
	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/repository/common"
	"github.com/avelichko/taskbroker-backend/internal/validation"
)

// OrderRepository описывает взаимодействие сервиса с хранилищем заказов.
type OrderRepository interface {
	CategoryExists(ctx context.Context, categoryID uuid.UUID) (bool, error)
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	AssignExecutor(ctx context.Context, id, executorID uuid.UUID, agreedPrice *float64, agreedDeadline *time.Time, startedAt time.Time) error
	Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementViews(ctx context.Context, id uuid.UUID) error
	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListByExecutor(ctx context.Context, executorID uuid.UUID, limit, offset int) ([]models.Order, error)
	CreateResponse(ctx context.Context, response *models.OrderResponse) error
	GetResponseByID(ctx context.Context, id uuid.UUID) (*models.OrderResponse, error)
	GetResponseByOrderAndExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.OrderResponse, error)
	ListResponses(ctx context.Context, orderID uuid.UUID) ([]models.OrderResponse, error)
	MarkResponseSelected(ctx context.Context, id uuid.UUID) error
	DeleteResponse(ctx context.Context, id, orderID uuid.UUID) error
}

// ExecutorDirectory описывает нужный машине состояний срез пользователей.
type ExecutorDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CanRespond(ctx context.Context, executorID uuid.UUID) (bool, error)
	IncrementExecutorCounter(ctx context.Context, userID uuid.UUID, counter string) error
}

// ChatCoordinator — операции чата, вызываемые внутри транзакций переходов.
type ChatCoordinator interface {
	EnsureRoom(ctx context.Context, order *models.Order, executorID uuid.UUID) (*models.ChatRoom, error)
	FindRoom(ctx context.Context, orderID, executorID uuid.UUID) (*models.ChatRoom, error)
	PostSystemMessage(ctx context.Context, roomID, authorID uuid.UUID, content string) error
}

// OrderService — машина состояний заказа. Каждая публичная операция
// проверяет guard-условия до записи и выполняет все свои мутации в одной
// транзакции; fan-out уведомлений происходит после коммита.
type OrderService struct {
	tx     common.Transactor
	repo   OrderRepository
	users  ExecutorDirectory
	chat   ChatCoordinator
	fanout Fanout
}

// NewOrderService создаёт новый сервис заказов.
func NewOrderService(tx common.Transactor, repo OrderRepository, users ExecutorDirectory, chat ChatCoordinator, fanout Fanout) *OrderService {
	return &OrderService{
		tx:     tx,
		repo:   repo,
		users:  users,
		chat:   chat,
		fanout: fanout,
	}
}

// CreateOrderInput описывает входные данные создания заказа.
type CreateOrderInput struct {
	ClientID    uuid.UUID
	CategoryID  uuid.UUID
	Title       string
	Description string
	BudgetMin   *float64
	BudgetMax   *float64
	DeadlineAt  *time.Time
}

// CreateOrder создаёт заказ в статусе NEW.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := validation.ValidateOrderTitle(in.Title); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}
	if err := validation.ValidateOrderDescription(in.Description); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}
	if err := validation.ValidateBudget(in.BudgetMin, in.BudgetMax); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}
	if in.DeadlineAt != nil && in.DeadlineAt.Before(time.Now()) {
		return nil, apperror.BadRequest("дедлайн не может быть в прошлом")
	}

	ok, err := s.repo.CategoryExists(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.BadRequest("рубрика не существует")
	}

	order := &models.Order{
		ClientID:    in.ClientID,
		CategoryID:  in.CategoryID,
		Title:       in.Title,
		Description: in.Description,
		BudgetMin:   in.BudgetMin,
		BudgetMax:   in.BudgetMax,
		DeadlineAt:  in.DeadlineAt,
		Status:      models.OrderStatusNew,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrder возвращает заказ и вне транзакции чтения увеличивает счётчик
// просмотров: инкремент никогда не блокирует чтение.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	goroutine.SafeGo(func() {
		if err := s.repo.IncrementViews(bg, id); err != nil {
			logger.Log.WithError(err).Debug("order service: не удалось увеличить счётчик просмотров")
		}
	})

	return order, nil
}

// ListMyOrders возвращает заказы пользователя как клиента и как исполнителя.
func (s *OrderService) ListMyOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, []models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	asClient, err := s.repo.ListByClient(ctx, userID, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	asExecutor, err := s.repo.ListByExecutor(ctx, userID, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	return asClient, asExecutor, nil
}

// CreateResponseInput описывает отклик исполнителя.
type CreateResponseInput struct {
	OrderID       uuid.UUID
	ExecutorID    uuid.UUID
	CoverLetter   string
	ProposedPrice *float64
	ProposedDays  *int
}

// CreateResponse создаёт отклик на заказ в статусе NEW. Повторный отклик
// того же исполнителя — Conflict: существующий отклик побеждает.
func (s *OrderService) CreateResponse(ctx context.Context, in CreateResponseInput) (*models.OrderResponse, error) {
	if err := validation.ValidateCoverLetter(in.CoverLetter); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	response := &models.OrderResponse{
		OrderID:       in.OrderID,
		ExecutorID:    in.ExecutorID,
		CoverLetter:   in.CoverLetter,
		ProposedPrice: in.ProposedPrice,
		ProposedDays:  in.ProposedDays,
	}

	var clientID uuid.UUID
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetByIDForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusNew {
			return apperror.BadRequest("заказ уже не принимает отклики")
		}
		if order.ClientID == in.ExecutorID {
			return apperror.Forbidden("нельзя откликнуться на собственный заказ")
		}

		allowed, err := s.users.CanRespond(ctx, in.ExecutorID)
		if err != nil {
			return err
		}
		if !allowed {
			return apperror.Forbidden("отклики доступны проверенным исполнителям с активной подпиской")
		}

		clientID = order.ClientID
		return s.repo.CreateResponse(ctx, response)
	})
	if err != nil {
		return nil, err
	}

	s.fanout.NotifyUser(ctx, clientID, Event{
		Type:    models.NotificationTypeResponseCreated,
		Title:   "Новый отклик",
		Body:    "На ваш заказ поступил отклик",
		OrderID: &in.OrderID,
	})

	return response, nil
}

// WithdrawResponse удаляет невыбранный отклик исполнителя, пока заказ NEW.
func (s *OrderService) WithdrawResponse(ctx context.Context, executorID, responseID uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		response, err := s.repo.GetResponseByID(ctx, responseID)
		if err != nil {
			return err
		}
		if response.ExecutorID != executorID {
			return apperror.Forbidden("это не ваш отклик")
		}
		if response.IsSelected {
			return apperror.BadRequest("выбранный отклик нельзя отозвать")
		}

		order, err := s.repo.GetByIDForUpdate(ctx, response.OrderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusNew {
			return apperror.BadRequest("заказ уже в работе")
		}

		return s.repo.DeleteResponse(ctx, responseID, response.OrderID)
	})
}

// ListResponses возвращает отклики владельцу заказа.
func (s *OrderService) ListResponses(ctx context.Context, clientID, orderID uuid.UUID) ([]models.OrderResponse, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != clientID {
		return nil, apperror.Forbidden("отклики видит только владелец заказа")
	}
	return s.repo.ListResponses(ctx, orderID)
}

// GetMyResponse возвращает отклик исполнителя на заказ.
func (s *OrderService) GetMyResponse(ctx context.Context, executorID, orderID uuid.UUID) (*models.OrderResponse, error) {
	return s.repo.GetResponseByOrderAndExecutor(ctx, orderID, executorID)
}

// SelectExecutorInput описывает выбор исполнителя.
type SelectExecutorInput struct {
	ClientID       uuid.UUID
	OrderID        uuid.UUID
	ResponseID     uuid.UUID
	AgreedPrice    *float64   // nil — берётся цена из отклика
	AgreedDeadline *time.Time // nil — берётся дедлайн заказа
}

// SelectExecutor — самая развесистая операция машины: помечает отклик
// выбранным, назначает исполнителя, цену и срок, переводит заказ в
// работу, заводит чат с системным сообщением и увеличивает счётчик
// заказов исполнителя. Всё — в одной транзакции; уведомление уходит
// после коммита.
func (s *OrderService) SelectExecutor(ctx context.Context, in SelectExecutorInput) (*models.Order, error) {
	var (
		order      *models.Order
		executorID uuid.UUID
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetByIDForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if order.ClientID != in.ClientID {
			return apperror.Forbidden("исполнителя выбирает владелец заказа")
		}
		if order.Status != models.OrderStatusNew {
			return apperror.BadRequest("исполнитель уже выбран")
		}

		response, err := s.repo.GetResponseByID(ctx, in.ResponseID)
		if err != nil {
			return err
		}
		if response.OrderID != in.OrderID {
			return apperror.BadRequest("отклик относится к другому заказу")
		}

		if err := s.repo.MarkResponseSelected(ctx, response.ID); err != nil {
			return err
		}

		executorID = response.ExecutorID

		agreedPrice := in.AgreedPrice
		if agreedPrice == nil {
			agreedPrice = response.ProposedPrice
		}
		agreedDeadline := in.AgreedDeadline
		if agreedDeadline == nil {
			agreedDeadline = order.DeadlineAt
		}

		startedAt := time.Now()
		if err := s.repo.AssignExecutor(ctx, order.ID, executorID, agreedPrice, agreedDeadline, startedAt); err != nil {
			return err
		}
		order.ExecutorID = &executorID
		order.AgreedPrice = agreedPrice
		order.AgreedDeadlineAt = agreedDeadline
		order.Status = models.OrderStatusInProgress
		order.StartedAt = &startedAt

		room, err := s.chat.EnsureRoom(ctx, order, executorID)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("Исполнитель выбран. Заказ «%s» переведён в работу.", order.Title)
		if err := s.chat.PostSystemMessage(ctx, room.ID, in.ClientID, text); err != nil {
			return err
		}

		return s.users.IncrementExecutorCounter(ctx, executorID, "total_orders")
	})
	if err != nil {
		return nil, err
	}

	s.fanout.NotifyUser(ctx, executorID, Event{
		Type:    models.NotificationTypeExecutorSelected,
		Title:   "Вас выбрали исполнителем",
		Body:    fmt.Sprintf("Заказ «%s» ждёт выполнения", order.Title),
		OrderID: &order.ID,
	})
	s.fanout.EmailUser(ctx, executorID, email.KindExecutorSelected, map[string]any{
		"order_title": order.Title,
	})

	return order, nil
}

// SubmitForReview переводит заказ на проверку клиенту.
func (s *OrderService) SubmitForReview(ctx context.Context, executorID, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.ExecutorID == nil || *order.ExecutorID != executorID {
			return apperror.Forbidden("сдать работу может только назначенный исполнитель")
		}
		if order.Status != models.OrderStatusInProgress && order.Status != models.OrderStatusRevision {
			return apperror.BadRequest("заказ нельзя отправить на проверку из текущего статуса")
		}

		order.Status = models.OrderStatusOnReview
		return s.repo.UpdateStatus(ctx, orderID, models.OrderStatusOnReview)
	})
	if err != nil {
		return nil, err
	}

	s.fanout.NotifyUser(ctx, order.ClientID, Event{
		Type:    models.NotificationTypeOrderOnReview,
		Title:   "Работа сдана на проверку",
		Body:    fmt.Sprintf("Заказ «%s» ждёт вашей проверки", order.Title),
		OrderID: &order.ID,
	})

	return order, nil
}

// ApproveWork принимает работу: COMPLETED терминален для этой ветки.
func (s *OrderService) ApproveWork(ctx context.Context, clientID, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.ClientID != clientID {
			return apperror.Forbidden("принять работу может только владелец заказа")
		}
		if order.Status != models.OrderStatusOnReview {
			return apperror.BadRequest("заказ не находится на проверке")
		}

		completedAt := time.Now()
		if err := s.repo.Complete(ctx, orderID, completedAt); err != nil {
			return err
		}
		order.Status = models.OrderStatusCompleted
		order.CompletedAt = &completedAt

		return s.users.IncrementExecutorCounter(ctx, *order.ExecutorID, "completed_orders")
	})
	if err != nil {
		return nil, err
	}

	s.fanout.NotifyUser(ctx, *order.ExecutorID, Event{
		Type:    models.NotificationTypeOrderCompleted,
		Title:   "Работа принята",
		Body:    fmt.Sprintf("Заказ «%s» завершён", order.Title),
		OrderID: &order.ID,
	})

	return order, nil
}

// RequestRevision возвращает работу на доработку с необязательной причиной.
func (s *OrderService) RequestRevision(ctx context.Context, clientID, orderID uuid.UUID, reason string) (*models.Order, error) {
	var order *models.Order

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.ClientID != clientID {
			return apperror.Forbidden("вернуть работу может только владелец заказа")
		}
		if order.Status != models.OrderStatusOnReview {
			return apperror.BadRequest("заказ не находится на проверке")
		}

		if err := s.repo.UpdateStatus(ctx, orderID, models.OrderStatusRevision); err != nil {
			return err
		}
		order.Status = models.OrderStatusRevision

		room, err := s.chat.FindRoom(ctx, orderID, *order.ExecutorID)
		if err != nil {
			return err
		}
		text := "Работа возвращена на доработку."
		if reason != "" {
			text = fmt.Sprintf("Работа возвращена на доработку: %s", reason)
		}
		return s.chat.PostSystemMessage(ctx, room.ID, clientID, text)
	})
	if err != nil {
		return nil, err
	}

	body := "Клиент вернул работу на доработку"
	if reason != "" {
		body = fmt.Sprintf("Клиент вернул работу на доработку: %s", reason)
	}
	s.fanout.NotifyUser(ctx, *order.ExecutorID, Event{
		Type:    models.NotificationTypeRevisionAsked,
		Title:   "Доработка",
		Body:    body,
		OrderID: &order.ID,
	})
	s.fanout.EmailUser(ctx, *order.ExecutorID, email.KindRevisionAsked, map[string]any{
		"order_title": order.Title,
		"reason":      reason,
	})

	return order, nil
}

// DeleteOrder жёстко удаляет заказ; разрешено только из NEW, отклики
// каскадируются.
func (s *OrderService) DeleteOrder(ctx context.Context, clientID, orderID uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.ClientID != clientID {
			return apperror.Forbidden("удалить заказ может только владелец")
		}
		if order.Status != models.OrderStatusNew {
			return apperror.BadRequest("удалить можно только новый заказ")
		}

		return s.repo.Delete(ctx, orderID)
	})
}
