package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/avelichko/taskbroker-backend/internal/email"
	"github.com/avelichko/taskbroker-backend/internal/goroutine"
	"github.com/avelichko/taskbroker-backend/internal/logger"
	"github.com/avelichko/taskbroker-backend/internal/models"
)

// TopicAdmin — ws-топик, на который подписываются сессии администраторов.
// Новые споры публикуются в топик один раз вместо рассылки по выбранному
// из базы списку админов.
const TopicAdmin = "admin"

// Event — полезная нагрузка fan-out уведомления.
type Event struct {
	Type     string
	Title    string
	Body     string
	OrderID  *uuid.UUID
	DeepLink *string
}

// payload приводит событие к контракту WebSocket API.
func (e Event) payload() map[string]any {
	p := map[string]any{
		"title": e.Title,
		"body":  e.Body,
	}
	if e.OrderID != nil {
		p["order_id"] = e.OrderID.String()
	}
	if e.DeepLink != nil {
		p["deep_link"] = *e.DeepLink
	}
	return p
}

// Fanout — контракт диспетчера для сервисов, порождающих события.
// Все методы fire-and-forget: вызываются после коммита и не возвращают
// ошибок доставки.
type Fanout interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, ev Event)
	NotifyAdmins(ctx context.Context, ev Event)
	EmailUser(ctx context.Context, userID uuid.UUID, kind string, args map[string]any)
	EmailAdmins(ctx context.Context, kind string, args map[string]any)
}

// RealtimeNotifier описывает realtime канал.
type RealtimeNotifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
	BroadcastToTopic(topic, event string, data any) error
}

// NotificationRecorder сохраняет in-app запись уведомления.
type NotificationRecorder interface {
	Record(ctx context.Context, n *models.Notification) error
}

// UserDirectory отдаёт адресатов для email рассылки.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
}

// FanoutService — диспетчер уведомлений. Вызывается после коммита
// породившей транзакции, работает fire-and-forget: сбой доставки
// логируется и глотается, бизнес-состояние он изменить не может.
type FanoutService struct {
	records NotificationRecorder
	rt      RealtimeNotifier
	mail    email.Sender
	users   UserDirectory
}

// NewFanoutService создаёт диспетчер.
func NewFanoutService(records NotificationRecorder, rt RealtimeNotifier, mail email.Sender, users UserDirectory) *FanoutService {
	return &FanoutService{records: records, rt: rt, mail: mail, users: users}
}

// NotifyUser сохраняет in-app запись и толкает событие в realtime канал
// получателя. Контекст отвязывается от запроса: доставка не должна
// умирать вместе с уже отвеченным HTTP запросом.
func (s *FanoutService) NotifyUser(ctx context.Context, userID uuid.UUID, ev Event) {
	bg := context.WithoutCancel(ctx)
	goroutine.SafeGo(func() {
		n := &models.Notification{
			UserID:   userID,
			Type:     ev.Type,
			Title:    ev.Title,
			Body:     ev.Body,
			OrderID:  ev.OrderID,
			DeepLink: ev.DeepLink,
		}
		if err := s.records.Record(bg, n); err != nil {
			logger.Log.WithError(err).Warn("fanout: не удалось сохранить уведомление")
		}

		if err := s.rt.BroadcastToUser(userID, ev.Type, ev.payload()); err != nil {
			logger.Log.WithError(err).Warn("fanout: не удалось отправить realtime уведомление")
		}
	})
}

// NotifyAdmins публикует событие в админский топик.
func (s *FanoutService) NotifyAdmins(ctx context.Context, ev Event) {
	goroutine.SafeGo(func() {
		if err := s.rt.BroadcastToTopic(TopicAdmin, ev.Type, ev.payload()); err != nil {
			logger.Log.WithError(err).Warn("fanout: не удалось опубликовать в админский топик")
		}
	})
}

// EmailUser отправляет шаблонное письмо пользователю.
func (s *FanoutService) EmailUser(ctx context.Context, userID uuid.UUID, kind string, args map[string]any) {
	bg := context.WithoutCancel(ctx)
	goroutine.SafeGo(func() {
		user, err := s.users.GetByID(bg, userID)
		if err != nil {
			logger.Log.WithError(err).Warn("fanout: адресат письма не найден")
			return
		}
		if err := s.mail.SendTemplated(bg, user.Email, kind, args); err != nil {
			logger.Log.WithError(err).Warn("fanout: не удалось отправить письмо")
		}
	})
}

// EmailAdmins отправляет шаблонное письмо каждому администратору.
// Единственное место, где список админов всё же выбирается из базы:
// у email, в отличие от realtime канала, нет подписок.
func (s *FanoutService) EmailAdmins(ctx context.Context, kind string, args map[string]any) {
	bg := context.WithoutCancel(ctx)
	goroutine.SafeGo(func() {
		admins, err := s.users.ListAdmins(bg)
		if err != nil {
			logger.Log.WithError(err).Warn("fanout: не удалось получить список админов")
			return
		}
		for _, admin := range admins {
			if err := s.mail.SendTemplated(bg, admin.Email, kind, args); err != nil {
				logger.Log.WithError(err).Warn("fanout: не удалось отправить письмо админу")
			}
		}
	})
}
