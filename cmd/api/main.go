package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/api"
	"github.com/sanosuguru/go-event-booking/internal/api/handler"
	custommw "github.com/sanosuguru/go-event-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/config"
	"github.com/sanosuguru/go-event-booking/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-event-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-booking/internal/worker"
)

func main() {
	// ロガー初期化
	env := os.Getenv("APP_ENV")
	log := logger.NewLogger(env)
	logger.Set(log)
	defer log.Sync() //nolint:errcheck

	// 設定読み込み
	cfg := config.Load()

	// メトリクス初期化
	m := metrics.Init()

	// PostgreSQL接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション（MIGRATIONS_PATH が設定されている場合のみ）
	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		if err := postgres.RunMigrations(db.DB, path); err != nil {
			log.Fatal("マイグレーションに失敗", zap.Error(err))
		}
		log.Info("マイグレーション完了", zap.String("path", path))
	}

	// Redis接続（失敗時はキャッシュなしで継続）
	var (
		dedupCache  application.DedupCache
		cacheWriter application.CachePopulator
		lockManager *redisinfra.EventLockManager
		writer      *worker.CacheWriter
	)

	redisClient := redisinfra.NewClient(&cfg.Redis)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := redisinfra.Ping(pingCtx, redisClient); err != nil {
		log.Warn("Redis接続に失敗、キャッシュなしで起動します", zap.Error(err))
		redisClient.Close()
	} else {
		cache := redisinfra.NewDedupCache(redisClient)
		dedupCache = cache
		lockManager = redisinfra.NewEventLockManager(redisClient)

		writer = worker.NewCacheWriter(
			cache,
			cfg.Booking.CacheQueueSize,
			cfg.Booking.DedupTTL,
			cfg.Booking.CacheTimeout,
		)
		cacheWriter = writer
		defer redisClient.Close()
	}
	pingCancel()

	// キャッシュ書き込みワーカー起動
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if writer != nil {
		go writer.Start(workerCtx)
	}

	// リポジトリ・サービス組み立て
	txManager := postgres.NewTxManager(db)
	eventRepo := postgres.NewEventRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)

	bookingService := application.NewBookingService(
		txManager, bookingRepo, eventRepo,
		dedupCache, cacheWriter, lockManager,
		cfg.Booking,
	)
	eventService := application.NewEventService(eventRepo)

	// Echoセットアップ
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	custommw.SetupMiddleware(e)
	e.Use(custommw.PrometheusMiddleware(m))

	// ルーティング
	bookingHandler := handler.NewBookingHandler(bookingService)
	eventHandler := handler.NewEventHandler(eventService)
	healthHandler := handler.NewHealthHandler()

	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)
	v1.POST("/events", eventHandler.Create)
	v1.GET("/events", eventHandler.List)
	v1.GET("/events/:id", eventHandler.GetByID)
	v1.DELETE("/events/:id", eventHandler.Delete)
	v1.POST("/events/:id/bookings", bookingHandler.Reserve)
	v1.GET("/bookings", bookingHandler.ListUserBookings)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), custommw.MetricsBasicAuth())

	// サーバー起動
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()
	log.Info("サーバー起動", zap.String("port", cfg.Server.Port))

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error("サーバーシャットダウンエラー", zap.Error(err))
	}

	// 処理中のキャッシュ書き込みを完了させてから終了
	if writer != nil {
		writer.Stop()
	}

	log.Info("サーバーが正常にシャットダウンしました")
}
