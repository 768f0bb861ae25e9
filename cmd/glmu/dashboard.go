package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/glm-usage-tui/internal/app"
	"github.com/j-veylop/glm-usage-tui/internal/client"
	"github.com/j-veylop/glm-usage-tui/internal/config"
	"github.com/j-veylop/glm-usage-tui/internal/logger"
	"github.com/j-veylop/glm-usage-tui/internal/services"
	uiconfig "github.com/j-veylop/glm-usage-tui/internal/ui/tabs/config"
	"github.com/j-veylop/glm-usage-tui/internal/ui/tabs/usage"
)

// runDashboard wires the backend, the client controller and the TUI, and
// blocks until the user quits.
func runDashboard(cfg *config.Config) error {
	// The alternate screen owns stdout, so logs go to a file.
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger.Setup(logFile, logger.LevelFromEnv())

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			logger.Warn("error closing services", "error", closeErr)
		}
	}()

	controller := client.New(mgr, client.DefaultConfig())
	defer controller.Close()
	validator := client.NewValidator(mgr, controller.SetCredentials)

	state := app.NewState()
	commands := app.NewCommands(controller, validator, mgr)
	model := app.NewModel(state, commands)
	model.SetTab(client.ViewUsage, usage.New(state, commands))
	model.SetTab(client.ViewConfig, uiconfig.New(state, commands, mgr.ConfigPath()))

	p := tea.NewProgram(model, tea.WithAltScreen())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		if _, ok := <-sigChan; ok {
			p.Send(tea.Quit())
		}
	}()

	stopToggle := watchToggleSignal(mgr.ToggleVisibility)
	defer stopToggle()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
