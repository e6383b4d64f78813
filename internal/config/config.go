package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultWeatherURL = "https://api.openweathermap.org/data/2.5/weather"
	DefaultWeatherKey = "e34b4c51d8c2b7bf48d5217fe52ff79e"
)

type Config struct {
	Env           string
	HTTPPort      string
	DBDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	LogLevel      string

	WeatherURL   string
	WeatherKey   string
	DefaultCity  string
	FetchTimeout time.Duration
	SessionTTL   time.Duration
	MaxSessions  int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	ZipkinURL string

	CollectorCities   []string
	CollectorInterval time.Duration
}

// Load читает переменные окружения и (если есть) файл .env в каталоге path
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(path)
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 300)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("WEATHER_API_URL", DefaultWeatherURL)
	v.SetDefault("WEATHER_API_KEY", DefaultWeatherKey)
	v.SetDefault("DEFAULT_CITY", "Jakarta")
	v.SetDefault("FETCH_TIMEOUT_SECONDS", 10)
	v.SetDefault("SESSION_TTL_MINUTES", 30)
	v.SetDefault("SESSION_MAX", 1000)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "weather_lookups")
	v.SetDefault("KAFKA_GROUP", "weather_aggregator_group")
	v.SetDefault("ZIPKIN_URL", "")
	v.SetDefault("COLLECTOR_CITIES", "Jakarta,London,New York,Tokyo")
	v.SetDefault("COLLECTOR_INTERVAL_SECONDS", 600)

	if err := v.ReadInConfig(); err != nil {
		// Файл .env не обязателен
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// Нечисловые значения viper читает как 0
	for _, key := range []string{
		"CACHE_TTL_SECONDS",
		"FETCH_TIMEOUT_SECONDS",
		"SESSION_TTL_MINUTES",
		"COLLECTOR_INTERVAL_SECONDS",
		"SESSION_MAX",
	} {
		if v.GetInt(key) <= 0 {
			return nil, fmt.Errorf("%s должен быть положительным целым, получено %q", key, v.GetString(key))
		}
	}

	return &Config{
		Env:               v.GetString("ENV"),
		HTTPPort:          v.GetString("HTTP_PORT"),
		DBDSN:             v.GetString("DB_DSN"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		CacheTTL:          time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		LogLevel:          v.GetString("LOG_LEVEL"),
		WeatherURL:        v.GetString("WEATHER_API_URL"),
		WeatherKey:        v.GetString("WEATHER_API_KEY"),
		DefaultCity:       v.GetString("DEFAULT_CITY"),
		FetchTimeout:      time.Duration(v.GetInt("FETCH_TIMEOUT_SECONDS")) * time.Second,
		SessionTTL:        time.Duration(v.GetInt("SESSION_TTL_MINUTES")) * time.Minute,
		MaxSessions:       v.GetInt("SESSION_MAX"),
		KafkaBrokers:      splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:        v.GetString("KAFKA_TOPIC"),
		KafkaGroup:        v.GetString("KAFKA_GROUP"),
		ZipkinURL:         v.GetString("ZIPKIN_URL"),
		CollectorCities:   splitList(v.GetString("COLLECTOR_CITIES")),
		CollectorInterval: time.Duration(v.GetInt("COLLECTOR_INTERVAL_SECONDS")) * time.Second,
	}, nil
}

func splitList(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
