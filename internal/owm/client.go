package owm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gometeo/widget/internal/model"
)

// Ограничение на размер тела ответа
const maxBodySize = 1 << 20

// StatusError - апстрим ответил не 200
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("сервис погоды вернул %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("сервис погоды вернул %d", e.Code)
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	tracer  trace.Tracer
	logger  *slog.Logger
	timeout time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout задает таймаут запроса. Переданный через WithHTTPClient клиент
// не изменяется: таймаут ставится на его копию.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

func New(baseURL, apiKey string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		tracer:  otel.Tracer("gometeo/owm"),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// RequestURL возвращает адрес запроса: город подставляется как есть, без экранирования
func (c *Client) RequestURL(city string) string {
	return c.baseURL + "?q=" + city + "&appid=" + c.apiKey
}

// Fetch делает один GET к сервису погоды. Повторов нет.
func (c *Client) Fetch(ctx context.Context, city string) (model.WeatherRecord, error) {
	ctx, span := c.tracer.Start(ctx, "owm.fetch", trace.WithAttributes(attribute.String("city", city)))
	defer span.End()

	start := time.Now()
	rec, err := c.fetch(ctx, city)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("Ошибка запроса погоды", "city", city, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return model.WeatherRecord{}, err
	}

	c.logger.Debug("Погода получена", "city", city, "duration_ms", time.Since(start).Milliseconds())
	return rec, nil
}

func (c *Client) fetch(ctx context.Context, city string) (model.WeatherRecord, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return model.WeatherRecord{}, fmt.Errorf("неверный адрес %q: %w", c.baseURL, err)
	}
	// Город уходит значением q целиком, включая '%', '&' и пробелы
	q := u.Query()
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.WeatherRecord{}, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.WeatherRecord{}, fmt.Errorf("ошибка запроса к сервису погоды: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return model.WeatherRecord{}, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{Code: resp.StatusCode}
		var apiErr model.OpenWeatherError
		if json.Unmarshal(body, &apiErr) == nil {
			serr.Message = apiErr.Message
		}
		return model.WeatherRecord{}, serr
	}

	var decoded model.OpenWeatherResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return model.WeatherRecord{}, &model.ParseError{Field: "body", Err: err}
	}
	return decoded.Record()
}

// IsNotFound - город не найден апстримом
func IsNotFound(err error) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.Code == http.StatusNotFound
}
