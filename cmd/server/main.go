package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/au-lex/safeqly-backend/internal/cache"
	"github.com/au-lex/safeqly-backend/internal/config"
	"github.com/au-lex/safeqly-backend/internal/db"
	httpHandlers "github.com/au-lex/safeqly-backend/internal/http/handlers"
	httpRouter "github.com/au-lex/safeqly-backend/internal/http/router"
	"github.com/au-lex/safeqly-backend/internal/jobs"
	"github.com/au-lex/safeqly-backend/internal/logger"
	"github.com/au-lex/safeqly-backend/internal/mailer"
	"github.com/au-lex/safeqly-backend/internal/metrics"
	"github.com/au-lex/safeqly-backend/internal/paystack"
	"github.com/au-lex/safeqly-backend/internal/repository"
	"github.com/au-lex/safeqly-backend/internal/service"
	"github.com/au-lex/safeqly-backend/internal/storage"
	"github.com/au-lex/safeqly-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.Env == "development")

	metrics.Register()

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Redis: OTP коды и кэш счётчиков уведомлений.
	redisClient, err := cache.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("main: ошибка подключения к redis: %v", err)
	}
	defer redisClient.Close()

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	fileStorage, err := storage.NewFileStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	smtpMailer := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPPass)
	paystackClient := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	bankAccountRepo := repository.NewBankAccountRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	notificationService := service.NewNotificationService(notificationRepo, redisClient, hub)
	authService := service.NewAuthService(userRepo, tokenManager, redisClient, smtpMailer, cfg.OTPTTL)
	userService := service.NewUserService(userRepo)
	escrowService := service.NewEscrowService(escrowRepo, userRepo, notificationService, cfg.EscrowFeePercent)
	disputeService := service.NewDisputeService(disputeRepo, escrowRepo, notificationService, cfg.EscrowFeePercent)
	walletService := service.NewWalletService(walletRepo, bankAccountRepo, userRepo, paystackClient, notificationService, cfg.MinWithdrawal)
	adminService := service.NewAdminService(userRepo, escrowRepo, disputeRepo, walletRepo, notificationService)

	// Фоновая сверка зависших платежей.
	settlement := jobs.NewSettlement(walletRepo, walletService)
	if err := settlement.Start(); err != nil {
		log.Fatalf("main: не удалось запустить фоновую сверку: %v", err)
	}
	defer settlement.Stop()

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	profileHandler := httpHandlers.NewProfileHandler(userService)
	escrowHandler := httpHandlers.NewEscrowHandler(escrowService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	walletHandler := httpHandlers.NewWalletHandler(walletService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	mediaHandler := httpHandlers.NewMediaHandler(fileStorage)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	adminHandler := httpHandlers.NewAdminHandler(authService, adminService, disputeService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, redisClient)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, profileHandler, escrowHandler, disputeHandler, walletHandler, notificationHandler, mediaHandler, wsHandler, adminHandler, healthHandler, tokenManager)

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
