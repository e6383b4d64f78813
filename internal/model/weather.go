package model

import (
	"fmt"
	"time"
)

// WeatherRecord - нормализованные данные о погоде для одного города
type WeatherRecord struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Description string  `json:"description"`
}

// Location возвращает строку вида "City, COUNTRY"
func (r WeatherRecord) Location() string {
	return r.City + ", " + r.Country
}

// LookupEvent - структура, которая летает через Kafka
type LookupEvent struct {
	ID        string        `json:"id"`
	Query     string        `json:"query"`
	Record    WeatherRecord `json:"record"`
	Source    string        `json:"source"`
	Timestamp time.Time     `json:"timestamp"`
}

// CityLookup - строка из истории запросов
type CityLookup struct {
	WeatherRecord
	UpdatedAt time.Time `json:"updated_at"`
}

type WeatherResponse struct {
	Record WeatherRecord `json:"record"`
	Cached bool          `json:"cached"`
}

type CitiesResponse struct {
	Cities []string `json:"cities"`
	Total  int      `json:"total"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ParseError - ответ API не совпадает с ожидаемой схемой
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("неверный ответ погоды: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("неверный ответ погоды: отсутствует поле %s", e.Field)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
