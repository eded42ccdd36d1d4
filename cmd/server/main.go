package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/avelichko/taskbroker-backend/internal/config"
	"github.com/avelichko/taskbroker-backend/internal/db"
	"github.com/avelichko/taskbroker-backend/internal/email"
	httpHandlers "github.com/avelichko/taskbroker-backend/internal/http/handlers"
	httpRouter "github.com/avelichko/taskbroker-backend/internal/http/router"
	"github.com/avelichko/taskbroker-backend/internal/logger"
	"github.com/avelichko/taskbroker-backend/internal/repository"
	"github.com/avelichko/taskbroker-backend/internal/repository/common"
	"github.com/avelichko/taskbroker-backend/internal/service"
	"github.com/avelichko/taskbroker-backend/internal/storage"
	"github.com/avelichko/taskbroker-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	evidenceStorage, err := storage.NewEvidenceStorage(cfg.EvidenceStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	txManager := common.NewTxManager(dbConn)
	userRepo := repository.NewUserRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	chatRepo := repository.NewChatRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	reviewRepo := repository.NewReviewRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	mailSender := email.NewLogSender(cfg.EmailFrom)
	notificationService := service.NewNotificationService(notificationRepo)
	fanout := service.NewFanoutService(notificationService, hub, mailSender, userRepo)

	authService := service.NewAuthService(userRepo, tokenManager)
	chatService := service.NewChatService(chatRepo, orderRepo, fanout)
	orderService := service.NewOrderService(txManager, orderRepo, userRepo, chatService, fanout)
	disputeService := service.NewDisputeService(txManager, disputeRepo, orderRepo, userRepo, chatService, fanout)
	reviewService := service.NewReviewService(txManager, reviewRepo, orderRepo, userRepo)

	// HTTP хэндлеры.
	h := httpRouter.Handlers{
		Auth:          httpHandlers.NewAuthHandler(authService),
		Orders:        httpHandlers.NewOrderHandler(orderService),
		Disputes:      httpHandlers.NewDisputeHandler(disputeService, evidenceStorage),
		Chat:          httpHandlers.NewChatHandler(chatService),
		Reviews:       httpHandlers.NewReviewHandler(reviewService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService),
		Profiles:      httpHandlers.NewProfileHandler(userRepo),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager),
		Health:        httpHandlers.NewHealthHandler(dbConn),
	}

	engine := httpRouter.New(cfg, tokenManager, h)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
