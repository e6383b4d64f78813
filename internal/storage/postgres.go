package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Регистрируем драйвер pgx

	"github.com/gometeo/widget/internal/model"
)

var ErrNotFound = errors.New("город не найден")

const schema = `
CREATE TABLE IF NOT EXISTS weather_lookups (
	city_key    VARCHAR(100) PRIMARY KEY,
	city        VARCHAR(100) NOT NULL,
	country     VARCHAR(8) NOT NULL,
	temp        DOUBLE PRECISION NOT NULL,
	humidity    INTEGER NOT NULL,
	wind_speed  DOUBLE PRECISION NOT NULL,
	description VARCHAR(255) NOT NULL,
	lookups     INTEGER NOT NULL DEFAULT 1,
	updated_at  TIMESTAMPTZ NOT NULL
);`

type WeatherStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(dsn string, logger *slog.Logger) (*WeatherStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия БД: %w", err)
	}
	return newWithDB(db, logger)
}

func newWithDB(db *sql.DB, logger *slog.Logger) (*WeatherStorage, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания таблицы: %w", err)
	}

	return &WeatherStorage{db: db, logger: logger}, nil
}

func (s *WeatherStorage) Close() {
	s.db.Close()
}

func (s *WeatherStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save обновляет последнюю погоду по городу или создает запись (Upsert)
func (s *WeatherStorage) Save(ctx context.Context, rec model.WeatherRecord, at time.Time) error {
	query := `
		INSERT INTO weather_lookups (city_key, city, country, temp, humidity, wind_speed, description, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (city_key) DO UPDATE
		SET city = EXCLUDED.city,
		    country = EXCLUDED.country,
		    temp = EXCLUDED.temp,
		    humidity = EXCLUDED.humidity,
		    wind_speed = EXCLUDED.wind_speed,
		    description = EXCLUDED.description,
		    lookups = weather_lookups.lookups + 1,
		    updated_at = GREATEST(weather_lookups.updated_at, EXCLUDED.updated_at);
	`

	_, err := s.db.ExecContext(ctx, query,
		cityKey(rec.City),
		rec.City,
		rec.Country,
		rec.Temperature,
		rec.Humidity,
		rec.WindSpeed,
		rec.Description,
		at,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения погоды для %s: %w", rec.City, err)
	}

	return nil
}

func (s *WeatherStorage) GetByCity(ctx context.Context, city string) (*model.CityLookup, error) {
	query := `
		SELECT city, country, temp, humidity, wind_speed, description, updated_at
		FROM weather_lookups WHERE city_key = $1`

	var out model.CityLookup
	err := s.db.QueryRowContext(ctx, query, cityKey(city)).Scan(
		&out.City, &out.Country, &out.Temperature, &out.Humidity,
		&out.WindSpeed, &out.Description, &out.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения погоды для %s: %w", city, err)
	}
	return &out, nil
}

// GetAllCities возвращает города, начиная с недавно запрошенных
func (s *WeatherStorage) GetAllCities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT city FROM weather_lookups ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения городов: %w", err)
	}
	defer rows.Close()

	cities := make([]string, 0)
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		cities = append(cities, city)
	}
	return cities, rows.Err()
}

func cityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
