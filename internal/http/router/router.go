package router

import (
	"github.com/gin-gonic/gin"

	"github.com/avelichko/taskbroker-backend/internal/config"
	"github.com/avelichko/taskbroker-backend/internal/http/handlers"
	"github.com/avelichko/taskbroker-backend/internal/http/middleware"
	"github.com/avelichko/taskbroker-backend/internal/models"
	"github.com/avelichko/taskbroker-backend/internal/service"
)

// Handlers собирает все хэндлеры, которые подключает роутер.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Orders        *handlers.OrderHandler
	Disputes      *handlers.DisputeHandler
	Chat          *handlers.ChatHandler
	Reviews       *handlers.ReviewHandler
	Notifications *handlers.NotificationHandler
	Profiles      *handlers.ProfileHandler
	WS            *handlers.WSHandler
	Health        *handlers.HealthHandler
}

// New собирает gin-роутер со всеми маршрутами и middleware.
func New(cfg *config.Config, tokens *service.TokenManager, h Handlers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.ErrorHandler())

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")

	// Аутентификация под rate limit: защищаемся от перебора паролей.
	auth := api.Group("/auth", middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)
	}

	// WebSocket авторизуется токеном из query, не через middleware.
	api.GET("/ws", h.WS.Handle)

	// Публичные маршруты.
	api.GET("/orders/:id", middleware.UUIDValidator("id"), h.Orders.Get)
	api.GET("/executors/:id", middleware.UUIDValidator("id"), h.Profiles.GetExecutor)
	api.GET("/executors/:id/reviews", middleware.UUIDValidator("id"), h.Reviews.ListByExecutor)

	// Маршруты под авторизацией.
	authed := api.Group("", middleware.AuthMiddleware(tokens))
	{
		authed.GET("/auth/me", h.Auth.Me)

		orders := authed.Group("/orders")
		{
			orders.POST("", h.Orders.Create)
			orders.GET("/my", h.Orders.ListMy)

			order := orders.Group("/:id", middleware.UUIDValidator("id"))
			{
				order.DELETE("", h.Orders.Delete)
				order.POST("/responses", h.Orders.CreateResponse)
				order.GET("/responses", h.Orders.ListResponses)
				order.GET("/responses/my", h.Orders.GetMyResponse)
				order.POST("/select", h.Orders.SelectExecutor)
				order.POST("/submit", h.Orders.SubmitForReview)
				order.POST("/approve", h.Orders.Approve)
				order.POST("/revision", h.Orders.RequestRevision)
				order.POST("/dispute", h.Disputes.Open)
				order.POST("/chat", h.Chat.GetOrCreateRoom)
				order.POST("/reviews", h.Reviews.Create)
			}
		}

		authed.DELETE("/responses/:id", middleware.UUIDValidator("id"), h.Orders.WithdrawResponse)

		authed.PUT("/reviews/:id", middleware.UUIDValidator("id"), h.Reviews.Update)
		authed.DELETE("/reviews/:id", middleware.UUIDValidator("id"), h.Reviews.Delete)

		disputes := authed.Group("/disputes")
		{
			disputes.GET("/my", h.Disputes.ListMy)
			disputes.GET("/:id", middleware.UUIDValidator("id"), h.Disputes.Get)
			disputes.POST("/:id/evidence", middleware.UUIDValidator("id"), h.Disputes.UploadEvidence)
		}

		chats := authed.Group("/chats")
		{
			chats.GET("", h.Chat.ListRooms)
			chats.GET("/:id/messages", middleware.UUIDValidator("id"), h.Chat.ListMessages)
			chats.POST("/:id/messages", middleware.UUIDValidator("id"), h.Chat.SendMessage)
			chats.POST("/:id/read", middleware.UUIDValidator("id"), h.Chat.MarkRead)
		}

		notifications := authed.Group("/notifications")
		{
			notifications.GET("", h.Notifications.List)
			notifications.GET("/unread-count", h.Notifications.UnreadCount)
			notifications.POST("/read-all", h.Notifications.MarkAllRead)
			notifications.POST("/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkRead)
		}

		admin := authed.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/disputes", h.Disputes.ListOpen)
			admin.POST("/disputes/:id/take", middleware.UUIDValidator("id"), h.Disputes.Take)
			admin.PUT("/disputes/:id/notes", middleware.UUIDValidator("id"), h.Disputes.UpdateNotes)
			admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), h.Disputes.Resolve)
			admin.PATCH("/reviews/:id/visibility", middleware.UUIDValidator("id"), h.Reviews.SetVisibility)
		}
	}

	return r
}
