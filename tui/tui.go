package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/samaelod/paesim/config"
)

func New(version string, appConfig *config.Config) Model {
	if appConfig == nil {
		appConfig = config.Default()
	}
	return Model{
		screen:      screenSourceSelect,
		appConfig:   appConfig,
		fileBrowser: NewFileBrowser(append(append([]string{}, scenarioTypes...), captureTypes...)),
		menuCursor:  0,
		version:     version,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func Run(version string, appConfig *config.Config) error {
	p := tea.NewProgram(New(version, appConfig), tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(Model); ok && fm.engine != nil {
		fm.engine.Close()
	}
	return err
}
