package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gometeo/widget/internal/config"
	"github.com/gometeo/widget/internal/events"
	"github.com/gometeo/widget/internal/logging"
	"github.com/gometeo/widget/internal/owm"
	"github.com/gometeo/widget/internal/tracing"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("Не удалось загрузить конфигурацию", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel)
	logger.Info("Запуск Weather Collector...", "cities", cfg.CollectorCities, "interval", cfg.CollectorInterval)

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS не задан")
		os.Exit(1)
	}

	shutdownTracing, err := tracing.Setup(cfg.ZipkinURL, "gometeo-collector")
	if err != nil {
		logger.Error("Не удалось настроить трассировку", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// 1. Kafka Producer
	publisher, err := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, "collector", logger)
	if err != nil {
		logger.Error("Ошибка подключения к Kafka", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Ошибка при закрытии продюсера", "error", err)
		}
	}()

	client := owm.New(cfg.WeatherURL, cfg.WeatherKey, logger, owm.WithTimeout(cfg.FetchTimeout))

	// 2. Graceful Shutdown (Ctrl+C)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Первый проход сразу, затем по тикеру
	ticker := time.NewTicker(cfg.CollectorInterval)
	defer ticker.Stop()

	for {
		collect(ctx, client, publisher, cfg.CollectorCities, logger)

		select {
		case <-ctx.Done():
			logger.Info("Получен сигнал завершения. Остановка...")
			return
		case <-ticker.C:
		}
	}
}

func collect(ctx context.Context, client *owm.Client, publisher *events.Publisher, cities []string, logger *slog.Logger) {
	for _, city := range cities {
		if ctx.Err() != nil {
			return
		}

		rec, err := client.Fetch(ctx, city)
		if err != nil {
			// Ошибка по одному городу не останавливает обход
			continue
		}

		if err := publisher.Publish(ctx, city, rec); err != nil {
			logger.Error("Не удалось отправить сообщение", "city", city, "error", err)
			continue
		}
		logger.Info("Погода отправлена", "city", rec.City, "temp", rec.Temperature)
	}
}
