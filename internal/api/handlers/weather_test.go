package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gometeo/widget/internal/api/handlers"
	"github.com/gometeo/widget/internal/cache"
	"github.com/gometeo/widget/internal/model"
	"github.com/gometeo/widget/internal/owm"
	"github.com/gometeo/widget/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var records = map[string]model.WeatherRecord{
	"Jakarta":  {City: "Jakarta", Country: "ID", Temperature: 30, Humidity: 70, WindSpeed: 10, Description: "Sunny"},
	"New York": {City: "New York", Country: "US", Temperature: 20, Humidity: 60, WindSpeed: 5, Description: "Cloudy"},
}

type fakeFetcher struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeFetcher) Fetch(_ context.Context, city string) (model.WeatherRecord, error) {
	f.mu.Lock()
	f.queries = append(f.queries, city)
	f.mu.Unlock()

	switch city {
	case "Atlantis":
		return model.WeatherRecord{}, &owm.StatusError{Code: http.StatusNotFound, Message: "city not found"}
	case "Broken":
		return model.WeatherRecord{}, &model.ParseError{Field: "main.temp"}
	}
	if rec, ok := records[city]; ok {
		return rec, nil
	}
	return model.WeatherRecord{}, errors.New("connection refused")
}

func (f *fakeFetcher) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]model.WeatherRecord
	pingErr error
}

func (c *fakeCache) Get(_ context.Context, key string) (*model.WeatherRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.data[key]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (c *fakeCache) Set(_ context.Context, key string, rec model.WeatherRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = rec
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Ping(context.Context) error { return c.pingErr }

type fakeStore struct {
	cities  []string
	lookups map[string]model.CityLookup
	err     error
	pingErr error
}

func (s *fakeStore) GetAllCities(context.Context) ([]string, error) { return s.cities, s.err }
func (s *fakeStore) Ping(context.Context) error                     { return s.pingErr }

func (s *fakeStore) GetByCity(_ context.Context, city string) (*model.CityLookup, error) {
	if s.err != nil {
		return nil, s.err
	}
	l, ok := s.lookups[cache.CityKey(city)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &l, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) Publish(_ context.Context, query string, rec model.WeatherRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, query+"="+rec.City)
	return nil
}

func (p *fakePublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type env struct {
	handler   *handlers.WeatherHandler
	srv       *httptest.Server
	client    *http.Client
	fetcher   *fakeFetcher
	cache     *fakeCache
	store     *fakeStore
	publisher *fakePublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		fetcher:   &fakeFetcher{},
		cache:     &fakeCache{data: map[string]model.WeatherRecord{}},
		store: &fakeStore{
			cities: []string{"Tokyo", "London"},
			lookups: map[string]model.CityLookup{
				"tokyo": {
					WeatherRecord: model.WeatherRecord{City: "Tokyo", Country: "JP", Temperature: 18, Humidity: 55, WindSpeed: 3, Description: "Clear"},
					UpdatedAt:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
				},
			},
		},
		publisher: &fakePublisher{},
	}
	e.handler = handlers.NewWeatherHandler(handlers.Deps{
		Fetcher:     e.fetcher,
		Cache:       e.cache,
		Store:       e.store,
		Publisher:   e.publisher,
		DefaultCity: "Jakarta",
		MaxSessions: 5,
		Logger:      discard,
	})
	h := e.handler
	t.Cleanup(h.Sessions().Close)

	router := mux.NewRouter()
	h.Routes(router)
	e.srv = httptest.NewServer(router)
	t.Cleanup(e.srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	e.client = &http.Client{Jar: jar}
	return e
}

func (e *env) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// settled ждет, пока панель сессии выйдет из состояния Loading
func (e *env) settled(t *testing.T) string {
	t.Helper()
	var body string
	require.Eventually(t, func() bool {
		_, body = e.get(t, "/panel")
		return !strings.Contains(body, "Loading...")
	}, 2*time.Second, 10*time.Millisecond)
	return body
}

func TestPageMountsDefaultCity(t *testing.T) {
	e := newEnv(t)

	status, body := e.get(t, "/")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `placeholder="Enter City Name"`)
	assert.Contains(t, body, ">Search</button>")
	assert.Contains(t, body, `value="Jakarta"`)

	panel := e.settled(t)
	for _, want := range []string{"Jakarta, ID", ">30<", "Sunny", ">10<", "Wind Speed", "70%", "Humidity"} {
		assert.Contains(t, panel, want)
	}
	assert.Equal(t, []string{"Jakarta"}, e.fetcher.Queries())
	// Событие отправляется после обновления панели
	assert.Eventually(t, func() bool {
		ev := e.publisher.Events()
		return len(ev) == 1 && ev[0] == "Jakarta=Jakarta"
	}, time.Second, 10*time.Millisecond)
}

func TestSearchForm(t *testing.T) {
	e := newEnv(t)
	e.get(t, "/")
	e.settled(t)

	resp, err := e.client.PostForm(e.srv.URL+"/search", url.Values{"city": {"New York"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	panel := e.settled(t)
	for _, want := range []string{"New York, US", ">20<", "Cloudy", ">5<", "60%"} {
		assert.Contains(t, panel, want)
	}
	assert.Equal(t, []string{"Jakarta", "New York"}, e.fetcher.Queries())

	_, page := e.get(t, "/")
	assert.Contains(t, page, `value="New York"`)
}

func TestSearchFormEmptyCity(t *testing.T) {
	e := newEnv(t)

	resp, err := e.client.PostForm(e.srv.URL+"/search", url.Values{"city": {""}})
	require.NoError(t, err)
	resp.Body.Close()

	panel := e.settled(t)
	assert.Contains(t, panel, "Unable to load weather")
	assert.Equal(t, []string{""}, e.fetcher.Queries())
}

func TestSearchFormNotFound(t *testing.T) {
	e := newEnv(t)

	resp, err := e.client.PostForm(e.srv.URL+"/search", url.Values{"city": {"Atlantis"}})
	require.NoError(t, err)
	resp.Body.Close()

	panel := e.settled(t)
	assert.Contains(t, panel, "city not found")
	assert.Empty(t, e.publisher.Events())
}

func TestPageRefreshesWhileLoading(t *testing.T) {
	e := newEnv(t)
	_, body := e.get(t, "/")
	if strings.Contains(body, "Loading...") {
		assert.Contains(t, body, `http-equiv="refresh"`)
	}

	e.settled(t)
	_, body = e.get(t, "/")
	assert.NotContains(t, body, `http-equiv="refresh"`)
}

func TestGetWeatherCacheMissThenHit(t *testing.T) {
	e := newEnv(t)

	status, body := e.get(t, "/api/v1/weather/Jakarta")
	require.Equal(t, http.StatusOK, status)
	var resp model.WeatherResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.False(t, resp.Cached)
	assert.Equal(t, records["Jakarta"], resp.Record)

	_, ok := e.cache.data[cache.CityKey("Jakarta")]
	assert.True(t, ok)

	status, body = e.get(t, "/api/v1/weather/Jakarta")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, []string{"Jakarta"}, e.fetcher.Queries())
	assert.Equal(t, []string{"Jakarta=Jakarta"}, e.publisher.Events())
}

func TestGetWeatherErrors(t *testing.T) {
	cases := map[string]int{
		"Atlantis": http.StatusNotFound,
		"Broken":   http.StatusBadGateway,
		"Nowhere":  http.StatusBadGateway,
	}
	for city, want := range cases {
		t.Run(city, func(t *testing.T) {
			e := newEnv(t)
			status, body := e.get(t, "/api/v1/weather/"+city)
			assert.Equal(t, want, status)

			var resp model.ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, e.cache.data)
		})
	}
}

func TestGetAllCities(t *testing.T) {
	e := newEnv(t)

	status, body := e.get(t, "/api/v1/cities")
	require.Equal(t, http.StatusOK, status)
	var resp model.CitiesResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, []string{"Tokyo", "London"}, resp.Cities)
	assert.Equal(t, 2, resp.Total)

	e.store.err = errors.New("db down")
	status, _ = e.get(t, "/api/v1/cities")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestGetAllCitiesWithoutStore(t *testing.T) {
	h := handlers.NewWeatherHandler(handlers.Deps{Fetcher: &fakeFetcher{}, Logger: discard})
	router := mux.NewRouter()
	h.Routes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cities", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	e := newEnv(t)

	status, body := e.get(t, "/api/v1/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"database":"healthy"`)
	assert.Contains(t, body, `"redis":"healthy"`)

	e.cache.pingErr = errors.New("redis down")
	status, body = e.get(t, "/api/v1/health")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, `"status":"degraded"`)
}

func TestPanelRequiresSession(t *testing.T) {
	e := newEnv(t)

	resp, err := http.Get(e.srv.URL + "/panel")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/panel", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "gometeo_session", Value: "forged"})
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Zero(t, e.handler.Sessions().Len())
	assert.Empty(t, e.fetcher.Queries())
}

func TestRequestsWithoutCookieStayBounded(t *testing.T) {
	e := newEnv(t)

	// Клиент без cookie jar: каждый запрос открывает новую сессию
	for i := 0; i < 20; i++ {
		resp, err := http.Get(e.srv.URL + "/")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, 5, e.handler.Sessions().Len())
}

func TestInvalidateWeather(t *testing.T) {
	e := newEnv(t)
	e.get(t, "/api/v1/weather/Jakarta")
	require.Contains(t, e.cache.data, cache.CityKey("Jakarta"))

	req, err := http.NewRequest(http.MethodDelete, e.srv.URL+"/api/v1/weather/Jakarta", nil)
	require.NoError(t, err)
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotContains(t, e.cache.data, cache.CityKey("Jakarta"))

	_, body := e.get(t, "/api/v1/weather/Jakarta")
	var wr model.WeatherResponse
	require.NoError(t, json.Unmarshal([]byte(body), &wr))
	assert.False(t, wr.Cached)
	assert.Equal(t, []string{"Jakarta", "Jakarta"}, e.fetcher.Queries())
}

func TestInvalidateWeatherWithoutCache(t *testing.T) {
	h := handlers.NewWeatherHandler(handlers.Deps{Fetcher: &fakeFetcher{}, Logger: discard})
	router := mux.NewRouter()
	h.Routes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/weather/Jakarta", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetCity(t *testing.T) {
	e := newEnv(t)

	status, body := e.get(t, "/api/v1/cities/Tokyo")
	require.Equal(t, http.StatusOK, status)
	var lookup model.CityLookup
	require.NoError(t, json.Unmarshal([]byte(body), &lookup))
	assert.Equal(t, "Tokyo", lookup.City)
	assert.Equal(t, "JP", lookup.Country)
	assert.True(t, lookup.UpdatedAt.Equal(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))

	status, body = e.get(t, "/api/v1/cities/Atlantis")
	assert.Equal(t, http.StatusNotFound, status)
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "Город не найден", resp.Error)

	e.store.err = errors.New("db down")
	status, _ = e.get(t, "/api/v1/cities/Tokyo")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestGetCityWithoutStore(t *testing.T) {
	h := handlers.NewWeatherHandler(handlers.Deps{Fetcher: &fakeFetcher{}, Logger: discard})
	router := mux.NewRouter()
	h.Routes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cities/Tokyo", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
