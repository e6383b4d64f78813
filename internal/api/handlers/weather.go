package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/gometeo/widget/internal/api/middleware"
	"github.com/gometeo/widget/internal/cache"
	"github.com/gometeo/widget/internal/model"
	"github.com/gometeo/widget/internal/owm"
	"github.com/gometeo/widget/internal/panel"
	"github.com/gometeo/widget/internal/session"
	"github.com/gometeo/widget/internal/storage"
)

type RecordCache interface {
	Get(ctx context.Context, key string) (*model.WeatherRecord, error)
	Set(ctx context.Context, key string, rec model.WeatherRecord) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

type LookupStore interface {
	GetAllCities(ctx context.Context) ([]string, error)
	GetByCity(ctx context.Context, city string) (*model.CityLookup, error)
	Ping(ctx context.Context) error
}

type Publisher interface {
	Publish(ctx context.Context, query string, rec model.WeatherRecord) error
}

// Deps - зависимости обработчика. Cache, Store и Publisher могут быть nil.
type Deps struct {
	Fetcher     panel.Fetcher
	Cache       RecordCache
	Store       LookupStore
	Publisher   Publisher
	DefaultCity string
	// MaxSessions - предел числа панелей в памяти (0 - значение по умолчанию)
	MaxSessions int
	Logger      *slog.Logger
}

type WeatherHandler struct {
	fetcher   panel.Fetcher
	cache     RecordCache
	store     LookupStore
	publisher Publisher
	sessions  *session.Registry
	city      string
	logger    *slog.Logger
}

func NewWeatherHandler(deps Deps) *WeatherHandler {
	h := &WeatherHandler{
		fetcher:   deps.Fetcher,
		cache:     deps.Cache,
		store:     deps.Store,
		publisher: deps.Publisher,
		city:      deps.DefaultCity,
		logger:    deps.Logger,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.sessions = session.NewRegistry(h.newPanel, deps.MaxSessions)
	return h
}

func (h *WeatherHandler) newPanel() *panel.Panel {
	return panel.New(h.fetcher,
		panel.WithInitialSearch(h.city),
		panel.WithLogger(h.logger),
		panel.WithOnRecord(func(query string, rec model.WeatherRecord) {
			h.publish(context.Background(), query, rec)
		}))
}

func (h *WeatherHandler) Sessions() *session.Registry {
	return h.sessions
}

// Routes регистрирует UI и API маршруты
func (h *WeatherHandler) Routes(router *mux.Router) {
	router.HandleFunc("/", h.Page).Methods(http.MethodGet)
	router.HandleFunc("/panel", h.Panel).Methods(http.MethodGet)
	router.HandleFunc("/search", h.Search).Methods(http.MethodPost)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.JSON)
	api.HandleFunc("/weather/{city}", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/weather/{city}", h.InvalidateWeather).Methods(http.MethodDelete)
	api.HandleFunc("/cities", h.GetAllCities).Methods(http.MethodGet)
	api.HandleFunc("/cities/{city}", h.GetCity).Methods(http.MethodGet)
	api.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}

// GetWeather возвращает погоду для города: сначала кэш, затем сервис погоды
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	city := mux.Vars(r)["city"]
	ctx := r.Context()

	if h.cache != nil {
		cached, err := h.cache.Get(ctx, cache.CityKey(city))
		if err != nil {
			// Продолжаем - кэш не критичен
			h.logger.Error("Ошибка чтения из кэша", "city", city, "error", err)
		}
		if cached != nil {
			sendJSON(w, http.StatusOK, model.WeatherResponse{Record: *cached, Cached: true})
			h.logger.Info("Данные отданы из кэша",
				"city", city,
				"duration_ms", time.Since(start).Milliseconds(),
				"source", "cache")
			return
		}
	}

	rec, err := h.fetcher.Fetch(ctx, city)
	if err != nil {
		status, msg := upstreamStatus(err)
		sendError(w, status, msg, err.Error())
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, cache.CityKey(city), rec); err != nil {
			h.logger.Warn("Не удалось сохранить в кэш", "city", city, "error", err)
		}
	}
	h.publish(ctx, city, rec)

	sendJSON(w, http.StatusOK, model.WeatherResponse{Record: rec})
	h.logger.Info("Данные отданы из сервиса погоды",
		"city", city,
		"duration_ms", time.Since(start).Milliseconds(),
		"source", "upstream")
}

// InvalidateWeather удаляет город из кэша: следующий GET пойдет в сервис погоды
func (h *WeatherHandler) InvalidateWeather(w http.ResponseWriter, r *http.Request) {
	city := mux.Vars(r)["city"]

	if h.cache == nil {
		sendError(w, http.StatusServiceUnavailable, "Кэш не настроен", "")
		return
	}

	if err := h.cache.Delete(r.Context(), cache.CityKey(city)); err != nil {
		h.logger.Error("Не удалось удалить из кэша", "city", city, "error", err)
		sendError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера", "")
		return
	}

	h.logger.Info("Кэш города сброшен", "city", city)
	w.WriteHeader(http.StatusNoContent)
}

// GetCity возвращает последнюю сохраненную запись по городу
func (h *WeatherHandler) GetCity(w http.ResponseWriter, r *http.Request) {
	city := mux.Vars(r)["city"]

	if h.store == nil {
		sendError(w, http.StatusServiceUnavailable, "Хранилище не настроено", "")
		return
	}

	lookup, err := h.store.GetByCity(r.Context(), city)
	if errors.Is(err, storage.ErrNotFound) {
		sendError(w, http.StatusNotFound, "Город не найден", city)
		return
	}
	if err != nil {
		h.logger.Error("Ошибка получения города из БД", "city", city, "error", err)
		sendError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера", "")
		return
	}

	sendJSON(w, http.StatusOK, lookup)
}

// GetAllCities возвращает города из истории запросов
func (h *WeatherHandler) GetAllCities(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		sendError(w, http.StatusServiceUnavailable, "Хранилище не настроено", "")
		return
	}

	cities, err := h.store.GetAllCities(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения городов из БД", "error", err)
		sendError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера", "")
		return
	}

	sendJSON(w, http.StatusOK, model.CitiesResponse{Cities: cities, Total: len(cities)})
}

// HealthCheck проверяет доступность сервисов
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			h.logger.Error("Health check: DB недоступна", "error", err)
		} else {
			health["database"] = "healthy"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			h.logger.Error("Health check: Redis недоступен", "error", err)
		} else {
			health["redis"] = "healthy"
		}
	}

	status := http.StatusOK
	if health["status"] == "degraded" {
		status = http.StatusServiceUnavailable
	}

	sendJSON(w, status, health)
}

func (h *WeatherHandler) publish(ctx context.Context, query string, rec model.WeatherRecord) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, query, rec); err != nil {
		h.logger.Warn("Не удалось отправить событие", "city", rec.City, "error", err)
	}
}

func upstreamStatus(err error) (int, string) {
	var perr *model.ParseError
	switch {
	case owm.IsNotFound(err):
		return http.StatusNotFound, "Город не найден"
	case errors.As(err, &perr):
		return http.StatusBadGateway, "Неверный ответ сервиса погоды"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Сервис погоды не ответил"
	default:
		return http.StatusBadGateway, "Сервис погоды недоступен"
	}
}

// Вспомогательные функции
func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, errorMsg, details string) {
	sendJSON(w, status, model.ErrorResponse{Error: errorMsg, Message: details})
}
