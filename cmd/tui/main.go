package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gometeo/widget/internal/config"
	"github.com/gometeo/widget/internal/logging"
	"github.com/gometeo/widget/internal/owm"
	"github.com/gometeo/widget/internal/panel"
	"github.com/gometeo/widget/internal/tui"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("Не удалось загрузить конфигурацию", "error", err)
		os.Exit(1)
	}

	// stdout занят интерфейсом, логи пишем в файл
	logFile, err := tea.LogToFile("gometeo-tui.log", "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "не удалось открыть лог:", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := logging.New(logFile, cfg.Env, cfg.LogLevel)

	client := owm.New(cfg.WeatherURL, cfg.WeatherKey, logger, owm.WithTimeout(cfg.FetchTimeout))
	p := panel.New(client, panel.WithInitialSearch(cfg.DefaultCity), panel.WithLogger(logger))

	if _, err := tea.NewProgram(tui.New(context.Background(), p)).Run(); err != nil {
		logger.Error("Ошибка терминального интерфейса", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
