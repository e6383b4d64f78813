package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/gometeo/widget/internal/model"
)

type WeatherCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(addr, password string, db int, ttl time.Duration, logger *slog.Logger) (*WeatherCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	logger.Info("Успешное подключение к Redis", "addr", addr)

	return &WeatherCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func (c *WeatherCache) Close() error {
	return c.client.Close()
}

func (c *WeatherCache) Set(ctx context.Context, key string, data model.WeatherRecord) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}

	if err := c.client.Set(ctx, key, bytes, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи в Redis: %w", err)
	}

	c.logger.Debug("Данные сохранены в кэш", "key", key, "ttl", c.ttl)
	return nil
}

// Get возвращает (nil, nil), если ключа нет
func (c *WeatherCache) Get(ctx context.Context, key string) (*model.WeatherRecord, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из Redis: %w", err)
	}

	var data model.WeatherRecord
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, fmt.Errorf("ошибка десериализации: %w", err)
	}

	c.logger.Debug("Данные получены из кэша", "key", key)
	return &data, nil
}

func (c *WeatherCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("ошибка удаления из Redis: %w", err)
	}

	c.logger.Debug("Данные удалены из кэша", "key", key)
	return nil
}

func (c *WeatherCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// CityKey нормализует регистр, чтобы "Jakarta" и "jakarta" делили запись
func CityKey(city string) string {
	return "weather:city:" + strings.ToLower(strings.TrimSpace(city))
}
