// Package tui - терминальный клиент: поле поиска и панель погоды в Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gometeo/widget/internal/panel"
	"github.com/gometeo/widget/internal/search"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	tempStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	labelStyle = lipgloss.NewStyle().Faint(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
)

// settledMsg - запрос панели завершен, нужна перерисовка
type settledMsg struct{}

type Model struct {
	ctx     context.Context
	panel   *panel.Panel
	input   textinput.Model
	search  *search.Input
	pending <-chan struct{}
}

func New(ctx context.Context, p *panel.Panel) *Model {
	ti := textinput.New()
	ti.Placeholder = search.Placeholder
	ti.SetValue(p.View().Search)
	ti.Focus()

	m := &Model{ctx: ctx, panel: p, input: ti}
	m.search = search.New(ti.Value(), p.SetSearch, func() {
		m.pending = p.Search(ctx)
	})
	return m
}

func waitFor(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return settledMsg{}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitFor(m.panel.Mount(m.ctx)))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.panel.Close()
			return m, tea.Quit
		case tea.KeyEnter:
			m.search.Activate()
			return m, waitFor(m.pending)
		}
	case settledMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != m.search.Value {
		m.search.Change(v)
	}
	return m, cmd
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("  [" + search.ButtonLabel + ": enter]\n\n")
	b.WriteString(boxStyle.Render(Render(m.panel.View())))
	b.WriteString("\n")
	return b.String()
}

// Render рисует панель: загрузка, запись целиком или ошибка
func Render(v panel.View) string {
	switch v.State {
	case panel.Loading:
		return panel.LoadingText
	case panel.Failed:
		return errorStyle.Render(fmt.Sprintf("Unable to load weather: %v", v.Err))
	}

	rec := v.Record
	lines := []string{
		titleStyle.Render(rec.Location()),
		tempStyle.Render(panel.FormatNumber(rec.Temperature) + "°"),
		rec.Description,
		"",
		labelStyle.Render("Wind Speed") + " " + panel.FormatNumber(rec.WindSpeed),
		labelStyle.Render("Humidity") + " " + fmt.Sprintf("%d%%", rec.Humidity),
	}
	return strings.Join(lines, "\n")
}
