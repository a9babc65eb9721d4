package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shenikar/sos_alert_system/internal/config"
	"github.com/shenikar/sos_alert_system/internal/dashboard"
	"github.com/shenikar/sos_alert_system/internal/feed"
	v1 "github.com/shenikar/sos_alert_system/internal/handler/http/v1"
	"github.com/shenikar/sos_alert_system/internal/location"
	"github.com/shenikar/sos_alert_system/internal/metrics"
	"github.com/shenikar/sos_alert_system/internal/notification"
	"github.com/shenikar/sos_alert_system/internal/repository"
	"github.com/shenikar/sos_alert_system/internal/service"
	"github.com/shenikar/sos_alert_system/pkg/logger"
	"github.com/shenikar/sos_alert_system/pkg/postgres"
	redisclient "github.com/shenikar/sos_alert_system/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/sos_alert_system/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title SOS Alert System API
// @version 1.0
// @description Emergency alert lifecycle: reporters raise alerts, responders poll and resolve them.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	applied, err := postgres.Migrate(cfg.DatabaseURL, "file://migrations")
	if err != nil {
		return err
	}
	if !applied {
		log.Info("Database schema is up to date")
		return nil
	}

	log.Info("Database migrations applied successfully")
	return nil
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Метрики Prometheus
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Инициализация Redis клиента, пустой REDIS_ADDR отключает Redis
	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = redisclient.NewClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")
	}

	// Инициализация хранилищ
	var (
		store    service.ProjectionStore
		contacts service.ContactRepository
	)
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if err := runMigrations(cfg, log); err != nil {
			log.Fatalf("Failed to run database migrations: %v", err)
		}

		dbpool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer dbpool.Close()
		log.Info("Successfully connected to PostgreSQL")

		store = repository.NewAlertRepository(dbpool, redisClient, cfg.HistoryCacheTTL)
		contacts = repository.NewContactRepository(dbpool)
	default:
		memStore := repository.NewMemoryStore()
		defer memStore.Close()
		store = memStore
		contacts = repository.NewMemoryContactRepository()
		log.Warn("Using in-memory store, alerts are lost on restart")
	}

	// Лента изменений очереди, по умолчанию выключена
	changes, err := feed.New(cfg.ChangeFeed, redisClient)
	if err != nil {
		log.Fatalf("Failed to init change feed: %v", err)
	}

	// Канал уведомлений
	var channel notification.Channel = notification.NewLogChannel(log)
	if cfg.NotificationChannel == config.ChannelQueue {
		channel = notification.NewQueueChannel(redisClient)
		worker := notification.NewWorker(redisClient, log, cfg)
		worker.Start(ctx)
	}
	fanout := notification.NewFanout(channel, log, m)

	// Геолокация устройства
	opts := []service.Option{
		service.WithChangePublisher(changes),
		service.WithMetrics(m),
	}
	// Без LOCATION_PROVIDER_URL сэмплер работает на резервной координате с предупреждением
	provider := location.NewProvider(cfg.LocationProviderURL, cfg.LocationTimeout)
	if cfg.LocationProviderURL == "" {
		log.Warn("LOCATION_PROVIDER_URL is not set, device location falls back to default coordinate")
	}
	opts = append(opts, service.WithLocationProvider(provider))

	var cache location.Cache = location.NewMemoryCache()
	if redisClient != nil {
		cache = location.NewRedisCache(redisClient)
	}
	sampler := location.NewSampler(provider, cache, log, cfg, m)
	sampler.Start(ctx)
	defer sampler.Stop()

	// Инициализация сервисов
	alertService := service.NewAlertService(store, contacts, fanout, log, cfg, opts...)

	// Сессии ответчиков
	sessions := dashboard.NewManager(store, changes, log, cfg, m)
	sessions.Start()
	defer sessions.Shutdown()

	// Инициализация хэндлеров
	handler := v1.NewHandler(alertService, sessions, sampler, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Метрики и Swagger UI
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}
