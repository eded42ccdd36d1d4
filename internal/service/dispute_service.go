package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avelichko/taskbroker-backend/internal/email"
	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/pkg/apperror"
	"github.com/avelichko/taskbroker-backend/internal/repository/common"
	"github.com/avelichko/taskbroker-backend/internal/validation"
)

// DisputeRepository описывает взаимодействие сервиса споров с хранилищем.
type DisputeRepository interface {
	Create(ctx context.Context, dispute *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	Take(ctx context.Context, id, adminID uuid.UUID) error
	UpdateAdminNotes(ctx context.Context, id uuid.UUID, notes string) error
	Resolve(ctx context.Context, d *models.Dispute) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error)
	AddEvidence(ctx context.Context, evidence *models.DisputeEvidence) error
	ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error)
}

// DisputeService — под-процесс спора: открытие участником, взятие
// администратором, сбор доказательств и разрешение в пользу одной из
// сторон. Пока заказ в статусе DISPUTED, обычные переходы машины
// заблокированы guard-условиями самой машины.
type DisputeService struct {
	tx     common.Transactor
	repo   DisputeRepository
	orders OrderRepository
	users  ExecutorDirectory
	chat   ChatCoordinator
	fanout Fanout
}

// NewDisputeService создаёт новый сервис споров.
func NewDisputeService(tx common.Transactor, repo DisputeRepository, orders OrderRepository, users ExecutorDirectory, chat ChatCoordinator, fanout Fanout) *DisputeService {
	return &DisputeService{
		tx:     tx,
		repo:   repo,
		orders: orders,
		users:  users,
		chat:   chat,
		fanout: fanout,
	}
}

// OpenDispute открывает спор по заказу в работе или на проверке. Заказ
// переводится в DISPUTED, счётчик спорных заказов исполнителя растёт,
// в чат заказа падает системное сообщение. Уникальный индекс по
// order_id гарантирует не больше одного спора на заказ даже при гонке.
func (s *DisputeService) OpenDispute(ctx context.Context, openerID, orderID uuid.UUID, reason string) (*models.Dispute, error) {
	if err := validation.ValidateDisputeReason(reason); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	var (
		dispute      *models.Dispute
		order        *models.Order
		counterparty uuid.UUID
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.IsParticipant(openerID) {
			return apperror.Forbidden("спор открывает участник заказа")
		}
		if order.Status != models.OrderStatusInProgress && order.Status != models.OrderStatusOnReview {
			return apperror.BadRequest("спор можно открыть только по заказу в работе или на проверке")
		}

		if openerID == order.ClientID {
			counterparty = *order.ExecutorID
		} else {
			counterparty = order.ClientID
		}

		if err := s.orders.UpdateStatus(ctx, orderID, models.OrderStatusDisputed); err != nil {
			return err
		}
		order.Status = models.OrderStatusDisputed

		if err := s.users.IncrementExecutorCounter(ctx, *order.ExecutorID, "disputed_orders"); err != nil {
			return err
		}

		room, err := s.chat.FindRoom(ctx, orderID, *order.ExecutorID)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("Открыт спор: %s", reason)
		if err := s.chat.PostSystemMessage(ctx, room.ID, openerID, text); err != nil {
			return err
		}

		dispute = &models.Dispute{
			OrderID:  orderID,
			OpenerID: openerID,
			Reason:   reason,
			Status:   models.DisputeStatusOpen,
			RoomID:   &room.ID,
		}
		return s.repo.Create(ctx, dispute)
	})
	if err != nil {
		return nil, err
	}

	ev := Event{
		Type:    models.NotificationTypeDisputeOpened,
		Title:   "Открыт спор",
		Body:    fmt.Sprintf("По заказу «%s» открыт спор", order.Title),
		OrderID: &orderID,
	}
	s.fanout.NotifyUser(ctx, counterparty, ev)
	s.fanout.NotifyAdmins(ctx, ev)
	s.fanout.EmailUser(ctx, order.ClientID, email.KindDisputeOpened, map[string]any{"order_title": order.Title})
	s.fanout.EmailUser(ctx, *order.ExecutorID, email.KindDisputeOpened, map[string]any{"order_title": order.Title})
	s.fanout.EmailAdmins(ctx, email.KindDisputeOpened, map[string]any{"order_title": order.Title})

	return dispute, nil
}

// AddEvidenceInput описывает прикрепляемое к спору доказательство.
type AddEvidenceInput struct {
	DisputeID  uuid.UUID
	UploaderID uuid.UUID
	FilePath   string
	FileName   string
	FileSize   int64
	Comment    *string
}

// AddEvidence прикрепляет файл к неразрешённому спору.
func (s *DisputeService) AddEvidence(ctx context.Context, in AddEvidenceInput) (*models.DisputeEvidence, error) {
	var (
		evidence *models.DisputeEvidence
		order    *models.Order
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		dispute, err := s.repo.GetByIDForUpdate(ctx, in.DisputeID)
		if err != nil {
			return err
		}
		if dispute.Status == models.DisputeStatusResolved {
			return apperror.BadRequest("спор уже разрешён")
		}

		order, err = s.orders.GetByID(ctx, dispute.OrderID)
		if err != nil {
			return err
		}
		if !order.IsParticipant(in.UploaderID) {
			return apperror.Forbidden("доказательства прикладывают участники заказа")
		}

		evidence = &models.DisputeEvidence{
			DisputeID:  in.DisputeID,
			UploaderID: in.UploaderID,
			FilePath:   in.FilePath,
			FileName:   in.FileName,
			FileSize:   in.FileSize,
			Comment:    in.Comment,
		}
		if err := s.repo.AddEvidence(ctx, evidence); err != nil {
			return err
		}

		if dispute.RoomID != nil {
			text := fmt.Sprintf("Приложено доказательство: %s", in.FileName)
			return s.chat.PostSystemMessage(ctx, *dispute.RoomID, in.UploaderID, text)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Уведомляем вторую сторону спора.
	other := order.ClientID
	if in.UploaderID == order.ClientID && order.ExecutorID != nil {
		other = *order.ExecutorID
	}
	s.fanout.NotifyUser(ctx, other, Event{
		Type:    models.NotificationTypeEvidenceAdded,
		Title:   "Новое доказательство",
		Body:    fmt.Sprintf("К спору по заказу «%s» приложен файл", order.Title),
		OrderID: &order.ID,
	})

	return evidence, nil
}

// TakeDispute назначает администратора на спор. Спор в рассмотрении
// можно перевзять: арбитраж переходит к новому администратору.
func (s *DisputeService) TakeDispute(ctx context.Context, adminID, disputeID uuid.UUID) (*models.Dispute, error) {
	var (
		dispute *models.Dispute
		order   *models.Order
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		dispute, err = s.repo.GetByIDForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}
		if dispute.Status == models.DisputeStatusResolved {
			return apperror.BadRequest("спор уже разрешён")
		}

		order, err = s.orders.GetByID(ctx, dispute.OrderID)
		if err != nil {
			return err
		}

		if err := s.repo.Take(ctx, disputeID, adminID); err != nil {
			return err
		}
		dispute.Status = models.DisputeStatusUnderReview
		dispute.AdminID = &adminID

		if dispute.RoomID != nil {
			return s.chat.PostSystemMessage(ctx, *dispute.RoomID, order.ClientID, "Администратор подключился к рассмотрению спора.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := Event{
		Type:    models.NotificationTypeDisputeTaken,
		Title:   "Спор взят в рассмотрение",
		Body:    fmt.Sprintf("Администратор рассматривает спор по заказу «%s»", order.Title),
		OrderID: &order.ID,
	}
	s.fanout.NotifyUser(ctx, order.ClientID, ev)
	s.fanout.NotifyUser(ctx, *order.ExecutorID, ev)
	s.fanout.EmailUser(ctx, order.ClientID, email.KindDisputeTaken, map[string]any{"order_title": order.Title})
	s.fanout.EmailUser(ctx, *order.ExecutorID, email.KindDisputeTaken, map[string]any{"order_title": order.Title})

	return dispute, nil
}

// AddAdminNotes сохраняет внутренние заметки назначенного администратора.
func (s *DisputeService) AddAdminNotes(ctx context.Context, adminID, disputeID uuid.UUID, notes string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		dispute, err := s.repo.GetByIDForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}
		if dispute.AdminID == nil || *dispute.AdminID != adminID {
			return apperror.Forbidden("заметки ведёт назначенный администратор")
		}
		if dispute.Status == models.DisputeStatusResolved {
			return apperror.BadRequest("спор уже разрешён")
		}
		return s.repo.UpdateAdminNotes(ctx, disputeID, notes)
	})
}

// ResolveDispute закрывает спор: в пользу клиента заказ отменяется,
// в пользу исполнителя — завершается как выполненный. Это единственный
// выход заказа из статуса DISPUTED.
func (s *DisputeService) ResolveDispute(ctx context.Context, adminID, disputeID uuid.UUID, resolution, notes string, adminNotes *string) (*models.Dispute, error) {
	if resolution != models.DisputeResolutionFavorClient && resolution != models.DisputeResolutionFavorExecutor {
		return nil, apperror.BadRequest("недопустимое решение по спору")
	}

	var (
		dispute *models.Dispute
		order   *models.Order
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		dispute, err = s.repo.GetByIDForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}
		if dispute.Status == models.DisputeStatusResolved {
			return apperror.BadRequest("спор уже разрешён")
		}
		// Спор в рассмотрении разрешает тот, кто его взял. Открытый спор
		// админ может разрешить напрямую, минуя взятие.
		if dispute.AdminID != nil && *dispute.AdminID != adminID {
			return apperror.Forbidden("спор разрешает назначенный администратор")
		}

		order, err = s.orders.GetByIDForUpdate(ctx, dispute.OrderID)
		if err != nil {
			return err
		}

		resolvedAt := time.Now()
		dispute.Status = models.DisputeStatusResolved
		dispute.AdminID = &adminID
		dispute.Resolution = &resolution
		if notes != "" {
			dispute.ResolutionNotes = &notes
		}
		if adminNotes != nil {
			dispute.AdminNotes = adminNotes
		}
		dispute.ResolvedAt = &resolvedAt
		if err := s.repo.Resolve(ctx, dispute); err != nil {
			return err
		}

		var text string
		if resolution == models.DisputeResolutionFavorClient {
			if err := s.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled); err != nil {
				return err
			}
			order.Status = models.OrderStatusCancelled
			text = "Спор разрешён в пользу клиента. Заказ отменён."
		} else {
			if err := s.orders.Complete(ctx, order.ID, resolvedAt); err != nil {
				return err
			}
			order.Status = models.OrderStatusCompleted
			order.CompletedAt = &resolvedAt
			if err := s.users.IncrementExecutorCounter(ctx, *order.ExecutorID, "completed_orders"); err != nil {
				return err
			}
			text = "Спор разрешён в пользу исполнителя. Заказ завершён."
		}

		if dispute.RoomID != nil {
			return s.chat.PostSystemMessage(ctx, *dispute.RoomID, order.ClientID, text)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := Event{
		Type:    models.NotificationTypeDisputeResolved,
		Title:   "Спор разрешён",
		Body:    fmt.Sprintf("Спор по заказу «%s» разрешён", order.Title),
		OrderID: &order.ID,
	}
	s.fanout.NotifyUser(ctx, order.ClientID, ev)
	s.fanout.NotifyUser(ctx, *order.ExecutorID, ev)
	s.fanout.EmailUser(ctx, order.ClientID, email.KindDisputeResolved, map[string]any{"order_title": order.Title, "resolution": resolution})
	s.fanout.EmailUser(ctx, *order.ExecutorID, email.KindDisputeResolved, map[string]any{"order_title": order.Title, "resolution": resolution})

	return dispute, nil
}

// GetDispute возвращает спор участнику заказа или администратору.
func (s *DisputeService) GetDispute(ctx context.Context, viewer *models.User, disputeID uuid.UUID) (*models.Dispute, []models.DisputeEvidence, error) {
	dispute, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}

	if viewer.Role != models.RoleAdmin {
		order, err := s.orders.GetByID(ctx, dispute.OrderID)
		if err != nil {
			return nil, nil, err
		}
		if !order.IsParticipant(viewer.ID) {
			return nil, nil, apperror.Forbidden("спор видят участники заказа и администраторы")
		}
	}

	evidence, err := s.repo.ListEvidence(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	return dispute, evidence, nil
}

// ListMyDisputes возвращает споры по заказам пользователя.
func (s *DisputeService) ListMyDisputes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// ListOpenDisputes возвращает очередь открытых споров для администраторов.
func (s *DisputeService) ListOpenDisputes(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListOpen(ctx, limit, offset)
}
