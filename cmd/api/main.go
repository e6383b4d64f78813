package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/gometeo/widget/internal/api/handlers"
	"github.com/gometeo/widget/internal/api/middleware"
	"github.com/gometeo/widget/internal/cache"
	"github.com/gometeo/widget/internal/config"
	"github.com/gometeo/widget/internal/events"
	"github.com/gometeo/widget/internal/logging"
	"github.com/gometeo/widget/internal/owm"
	"github.com/gometeo/widget/internal/storage"
	"github.com/gometeo/widget/internal/tracing"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("Не удалось загрузить конфигурацию", "error", err)
		os.Exit(1)
	}

	// Настройка логирования
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel)
	logger.Info("Запуск Weather Widget сервиса...")
	logger.Info("Конфигурация загружена",
		"port", cfg.HTTPPort,
		"redis", cfg.RedisAddr,
		"cache_ttl", cfg.CacheTTL,
		"default_city", cfg.DefaultCity)

	shutdownTracing, err := tracing.Setup(cfg.ZipkinURL, "gometeo-api")
	if err != nil {
		logger.Error("Не удалось настроить трассировку", "error", err)
		os.Exit(1)
	}

	deps := handlers.Deps{
		Fetcher:     owm.New(cfg.WeatherURL, cfg.WeatherKey, logger, owm.WithTimeout(cfg.FetchTimeout)),
		DefaultCity: cfg.DefaultCity,
		MaxSessions: cfg.MaxSessions,
		Logger:      logger,
	}

	// 1. Postgres (история запросов)
	if cfg.DBDSN != "" {
		store, err := storage.New(cfg.DBDSN, logger)
		if err != nil {
			logger.Error("Не удалось подключиться к БД", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		deps.Store = store
		logger.Info("Успешное подключение к Postgres")
	}

	// 2. Redis (кэш API)
	if cfg.RedisAddr != "" {
		redisCache, err := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, logger)
		if err != nil {
			logger.Error("Не удалось подключиться к Redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		deps.Cache = redisCache
	}

	// 3. Kafka (события о запросах)
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, "api", logger)
		if err != nil {
			logger.Error("Ошибка подключения к Kafka", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		deps.Publisher = publisher
	}

	// 4. Маршрутизатор
	router := mux.NewRouter()
	weatherHandler := handlers.NewWeatherHandler(deps)
	weatherHandler.Routes(router)
	defer weatherHandler.Sessions().Close()

	handler := middleware.Wrap(logger, router)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Очистка неактивных сессий
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := weatherHandler.Sessions().Sweep(cfg.SessionTTL); n > 0 {
					logger.Debug("Сессии удалены", "count", n)
				}
			}
		}
	}()

	go func() {
		logger.Info("Сервер запущен", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Ошибка сервера", "error", err)
			stop()
		}
	}()

	// Ожидание сигнала завершения
	<-ctx.Done()
	logger.Info("Получен сигнал завершения...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при остановке сервера", "error", err)
	} else {
		logger.Info("Сервер остановлен")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Ошибка при остановке трассировки", "error", err)
	}
}
