package main

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/servicehub-backend/internal/config"
	"github.com/ignatzorin/servicehub-backend/internal/db"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/gateway/paystack"
	"github.com/ignatzorin/servicehub-backend/internal/goroutine"
	httpRouter "github.com/ignatzorin/servicehub-backend/internal/http/router"
	"github.com/ignatzorin/servicehub-backend/internal/infrastructure/memory"
	"github.com/ignatzorin/servicehub-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/handler"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/metrics"
	"github.com/ignatzorin/servicehub-backend/internal/service"
	"github.com/ignatzorin/servicehub-backend/internal/storage"
	"github.com/ignatzorin/servicehub-backend/internal/syncutil"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/job"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/payment"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/settlement"
	"github.com/ignatzorin/servicehub-backend/internal/ws"
	"github.com/ignatzorin/servicehub-backend/migrations"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}
	metrics.Init()

	tokenManager := service.NewTokenManager(cfg.JWTSecret)

	var (
		store  repository.Store
		dbConn *sqlx.DB
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := memory.NewStore()
		store = mem
		if _, err := service.SeedDevelopment(mem, tokenManager, 24*time.Hour); err != nil {
			logger.Log.Fatalf("main: ошибка seed: %v", err)
		}
		logger.Log.Warn("main: используется хранилище в памяти, данные не сохраняются")
	default:
		dbConn, err = db.NewPostgres(ctx, cfg.DatabaseURL, db.DefaultPool)
		if err != nil {
			logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
		}
		defer safeClose(dbConn)

		if err := db.RunMigrations(ctx, dbConn, migrationFiles(cfg.MigrationsPath)); err != nil {
			logger.Log.Fatalf("main: ошибка миграций: %v", err)
		}
		store = persistence.NewStore(dbConn)
	}

	// Вспомогательные сервисы.
	gw := paystack.NewClient(paystack.Config{
		SecretKey: cfg.Paystack.SecretKey,
		BaseURL:   cfg.Paystack.BaseURL,
		Timeout:   cfg.Paystack.Timeout,
		Currency:  cfg.Currency,
	})

	photoStorage, err := storage.NewPhotoStorage(cfg.MediaStoragePath, cfg.MediaPublicURL, cfg.MaxUploadSizeMB)
	if err != nil {
		logger.Log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	locks := syncutil.NewKeyedMutex(cfg.LockTimeout)

	// Вебсокеты.
	hub := ws.NewHub()
	hubDone := goroutine.SafeGoWithContext(ctx, "ws-hub", hub.Run)

	// Сценарии.
	reconciler := payment.NewReconciler(store, locks, hub)

	jobHandler := handler.NewJobHandler(
		job.NewCreateJobUseCase(store),
		job.NewGetJobUseCase(store),
		job.NewListJobsUseCase(store.Jobs()),
		job.NewTransitionJobUseCase(store, locks, hub),
		job.NewSubmitSatisfactionUseCase(store, photoStorage),
		cfg.MaxUploadSizeMB,
	)
	paymentHandler := handler.NewPaymentHandler(
		payment.NewInitializePaymentUseCase(store, gw, locks, cfg.FrontendURL),
		payment.NewVerifyPaymentUseCase(store, gw, reconciler),
	)
	webhookHandler := handler.NewWebhookHandler(reconciler)
	adminHandler := handler.NewAdminHandler(
		settlement.NewDisputeResolver(store, gw, locks, hub),
		settlement.NewEscrowRelease(store, gw, locks, hub),
		settlement.NewDisputeQueue(store.Jobs()),
		settlement.NewEscrowQueue(store.Jobs()),
		job.NewListAuditUseCase(store),
	)
	wsHandler := handler.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins)
	healthHandler := handler.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, tokenManager, jobHandler, paymentHandler, webhookHandler, adminHandler, wsHandler, healthHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo("http-shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	logger.Log.WithFields(logrus.Fields{
		"port":  cfg.HTTPPort,
		"store": cfg.StoreDriver,
		"env":   cfg.Env,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
	<-hubDone
}

// migrationFiles возвращает миграции с диска, если путь задан, иначе встроенные.
func migrationFiles(path string) fs.FS {
	if path != "" {
		return os.DirFS(path)
	}
	return migrations.Files
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Log.WithError(err).Error("main: ошибка закрытия базы")
	}
}
