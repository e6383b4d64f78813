// Package panel управляет циклом запрос/разбор/отображение погоды.
//
// Панель хранит строку поиска и результат последнего запроса. Каждый запуск
// поиска получает новый токен; ответ на устаревший запрос отбрасывается,
// а его контекст отменяется.
package panel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gometeo/widget/internal/model"
)

// Fetcher - источник данных о погоде
type Fetcher interface {
	Fetch(ctx context.Context, city string) (model.WeatherRecord, error)
}

type State int

const (
	Loading State = iota
	Displaying
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Displaying:
		return "displaying"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result - один из трех вариантов: Loading, Displaying(Record), Failed(Err)
type Result struct {
	State  State
	Record model.WeatherRecord
	Err    error
}

// View - снимок состояния панели для отрисовки
type View struct {
	Search string
	Result
}

type Panel struct {
	fetcher  Fetcher
	logger   *slog.Logger
	onRecord func(query string, rec model.WeatherRecord)

	mu     sync.Mutex
	search string
	result Result
	token  uint64
	cancel context.CancelFunc
}

type Option func(*Panel)

func WithInitialSearch(city string) Option {
	return func(p *Panel) { p.search = city }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Panel) { p.logger = logger }
}

// WithOnRecord вызывается после того, как панель показала новую запись
func WithOnRecord(fn func(query string, rec model.WeatherRecord)) Option {
	return func(p *Panel) { p.onRecord = fn }
}

func New(fetcher Fetcher, opts ...Option) *Panel {
	p := &Panel{
		fetcher: fetcher,
		logger:  slog.Default(),
		search:  "Jakarta",
		result:  Result{State: Loading},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetSearch обновляет строку поиска без запроса
func (p *Panel) SetSearch(s string) {
	p.mu.Lock()
	p.search = s
	p.mu.Unlock()
}

func (p *Panel) Mount(ctx context.Context) <-chan struct{} {
	return p.Search(ctx)
}

// Search запускает запрос для текущей строки поиска.
// Возвращаемый канал закрывается, когда запрос завершен (применен или отброшен).
func (p *Panel) Search(ctx context.Context) <-chan struct{} {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.token++
	token := p.token
	query := p.search
	p.cancel = cancel
	p.result = Result{State: Loading}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()

		rec, err := p.fetcher.Fetch(ctx, query)
		p.settle(token, query, rec, err)
	}()
	return done
}

func (p *Panel) settle(token uint64, query string, rec model.WeatherRecord, err error) {
	p.mu.Lock()
	if token != p.token {
		p.mu.Unlock()
		p.logger.Debug("Устаревший ответ отброшен", "city", query, "token", token)
		return
	}
	p.cancel = nil
	if err != nil {
		p.result = Result{State: Failed, Err: err}
	} else {
		p.result = Result{State: Displaying, Record: rec}
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("Не удалось получить погоду", "city", query, "error", err)
		return
	}
	p.logger.Info("Погода обновлена", "city", rec.City, "country", rec.Country, "temp", rec.Temperature)
	if p.onRecord != nil {
		p.onRecord(query, rec)
	}
}

func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return View{Search: p.search, Result: p.result}
}

// Close отменяет запрос, который еще выполняется
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	// Ответ после Close не должен применяться
	p.token++
}
