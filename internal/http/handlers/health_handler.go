package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const dbPingTimeout = 3 * time.Second

// DBChecker покрывает ровно то, что нужно health-проверке от пула
// соединений.
type DBChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler отвечает на проверки живости: единственная зависимость
// сервиса с состоянием — Postgres, поэтому проверяется только он.
type HealthHandler struct {
	db        DBChecker
	startedAt time.Time
}

// NewHealthHandler создаёт хэндлер. Время старта фиксируется здесь:
// uptime в ответе отсчитывается от подъёма процесса.
func NewHealthHandler(db DBChecker) *HealthHandler {
	return &HealthHandler{db: db, startedAt: time.Now()}
}

// Health обрабатывает GET /health. При недоступной базе отвечает 503,
// чтобы балансировщик вывел инстанс из ротации.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbPingTimeout)
	defer cancel()

	status := http.StatusOK
	overall := "ok"
	dbStatus := "ok"

	pingStart := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		status = http.StatusServiceUnavailable
		overall = "degraded"
		dbStatus = "unavailable"
	}

	c.JSON(status, gin.H{
		"status":         overall,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"database": gin.H{
			"status":  dbStatus,
			"ping_ms": time.Since(pingStart).Milliseconds(),
		},
	})
}
