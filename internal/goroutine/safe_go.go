package goroutine

import (
	"runtime/debug"

	"github.com/avelichko/taskbroker-backend/internal/logger"
)

// SafeGo запускает горутину с перехватом panic. Используется для всех
// фоновых задач: доставка уведомлений и писем, счётчик просмотров.
// Упавшая фоновая задача логируется и не роняет процесс.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.WithField("stack", string(debug.Stack())).
					Errorf("panic в фоновой горутине: %v", r)
			}
		}()
		fn()
	}()
}
