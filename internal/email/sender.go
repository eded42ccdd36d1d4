package email

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/avelichko/taskbroker-backend/internal/logger"
)

// Виды шаблонов писем.
const (
	KindExecutorSelected = "executor_selected"
	KindRevisionAsked    = "revision_requested"
	KindDisputeOpened    = "dispute_opened"
	KindDisputeTaken     = "dispute_taken"
	KindDisputeResolved  = "dispute_resolved"
)

// Sender описывает контракт доставки шаблонных писем. Ядро решает
// только что и кому отправить; сама доставка — внешний коллаборатор и
// может ретраиться на его стороне.
type Sender interface {
	SendTemplated(ctx context.Context, to, kind string, args map[string]any) error
}

// LogSender пишет письма в лог вместо реальной отправки. Используется,
// пока SMTP шлюз не подключён, и в тестовых окружениях.
type LogSender struct {
	from string
}

// NewLogSender создаёт лог-отправитель.
func NewLogSender(from string) *LogSender {
	return &LogSender{from: from}
}

// SendTemplated реализует Sender.
func (s *LogSender) SendTemplated(_ context.Context, to, kind string, args map[string]any) error {
	logger.Log.WithFields(logrus.Fields{
		"from":     s.from,
		"to":       to,
		"template": kind,
		"args":     args,
	}).Info("email: отправка письма")
	return nil
}
