package tui

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/samaelod/paesim/capture"
	"github.com/samaelod/paesim/config"
	"github.com/samaelod/paesim/engine"
	"github.com/samaelod/paesim/lua"
	"github.com/samaelod/paesim/types"
)

func openLogsInEditor(logContent string) tea.Cmd {
	f, err := os.CreateTemp("", "paesim-logs-*.log")
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}

	_, err = f.WriteString(logContent)
	f.Close()
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	tempPath := f.Name()

	c := exec.Command(editorCommand(), tempPath)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		os.Remove(tempPath)
		return nil
	})
}

func editorCommand() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	return "nano"
}

func newPanelList(items []list.Item, height int) list.Model {
	l := list.New(items, lineDelegate{}, defaultListWidth, height)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	return l
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		listWidth := m.listWidth(msg.Width - 4)
		m.fileBrowser.SetSize(listWidth-4, msg.Height-7)
		if m.screen == screenViewConfig {
			listHeight := msg.Height - 7
			if m.hasSecondary() {
				listHeight /= 2
			}
			m.primary.SetSize(listWidth-3, listHeight)
			m.secondary.SetSize(listWidth-3, listHeight)
		}

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			if m.engine != nil {
				m.engine.StopAll()
			}
			return m, tea.Quit
		}
	}

	switch msg := msg.(type) {
	case scenarioLoadedMsg:
		return m.applyScenario(msg)

	case captureLoadedMsg:
		return m.applyCapture(msg)

	case editorFinishedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m, loadCmd(sourceScenario, m.selectedFile, m.appConfig.RecentDir, false)

	case logMsg:
		if m.engine != nil && m.engine.Log != nil {
			m.logContent = m.engine.Log.ReadAll()
			m.logViewport.SetContent(m.logContent)
			m.logViewport.GotoBottom()
			m.refreshInbound()
			return m, waitForLog(m.engine.Log)
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		if m.screen != screenViewConfig {
			m.screen = screenLoading
		}
		return m, nil
	}

	switch m.screen {

	case screenSourceSelect:
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch msg.String() {
			case "up", "k", "left", "h":
				m.menuCursor--
				if m.menuCursor < 0 {
					m.menuCursor = 1
				}
			case "down", "j", "right", "l":
				m.menuCursor++
				if m.menuCursor > 1 {
					m.menuCursor = 0
				}
			case "enter":
				switch m.menuCursor {
				case 0:
					m.source = sourceScenario
					m.fileBrowser = NewFileBrowser(scenarioTypes)
				case 1:
					m.source = sourceCapture
					m.fileBrowser = NewFileBrowser(captureTypes)
				}

				listWidth := m.width / 3
				m.fileBrowser.SetSize(listWidth-4, m.height-7)
				m.screen = screenFilePicker
				return m, nil
			}
		}
		return m, nil

	case screenFilePicker:
		var cmd tea.Cmd
		m.fileBrowser, cmd = m.fileBrowser.Update(msg)

		if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
			item := m.fileBrowser.List.SelectedItem()
			if item != nil {
				fi, ok := item.(fileItem)
				if !ok || fi.isDir || !hasAllowedExt(fi.name, m.fileBrowser.AllowedTypes) {
					return m, nil
				}
				m.err = nil
				m.screen = screenLoading
				return m, loadCmd(m.source, fi.path, m.appConfig.RecentDir, true)
			}
		}
		return m, cmd

	case screenLoading:
		if msg, ok := msg.(tea.KeyMsg); ok && m.err != nil && (msg.String() == "esc" || msg.String() == "enter") {
			m.err = nil
			m.screen = screenFilePicker
		}
		return m, nil
	}

	if m.screen == screenViewConfig {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg, ok := msg.(tea.KeyMsg); ok {
			switch msg.String() {
			case "tab", "shift+tab":
				m.activeView = 1 - m.activeView
				return m, func() tea.Msg { return tea.WindowSizeMsg{Width: m.width, Height: m.height} }

			case "e":
				if m.activeView == 1 {
					return m, openLogsInEditor(m.logContent)
				}
				if m.source == sourceScenario {
					if m.engine != nil {
						m.engine.StopAll()
					}
					c := exec.Command(editorCommand(), m.selectedFile)
					return m, tea.ExecProcess(c, func(err error) tea.Msg {
						return editorFinishedMsg{err}
					})
				}
			case "u":
				if m.activeView == 0 {
					return m, loadCmd(m.source, m.selectedFile, m.appConfig.RecentDir, false)
				}
			case "left", "h":
				if m.activeView == 0 {
					m.activePanel = 0
				}
			case "right", "l":
				if m.activeView == 0 && m.hasSecondary() {
					m.activePanel = 1
				}
			case "r":
				if id, ok := m.selectedSession(); ok && m.engine != nil {
					// the log tail started in applyScenario picks up the run
					if err := m.engine.StartSession(id); err != nil {
						m.err = err
					}
					return m, nil
				}
			case "s":
				if id, ok := m.selectedSession(); ok && m.engine != nil {
					m.engine.StopSession(id)
				}
			case "S":
				if m.engine != nil {
					m.engine.StopAll()
				}
			case "g":
				if m.activeView == 1 {
					m.logViewport.GotoTop()
				}
			case "G":
				if m.activeView == 1 {
					m.logViewport.GotoBottom()
				}
			}
		}

		if m.activeView == 0 {
			if m.activePanel == 0 {
				m.primary, cmd = m.primary.Update(msg)
			} else {
				m.secondary, cmd = m.secondary.Update(msg)
			}
			cmds = append(cmds, cmd)
		} else {
			m.logViewport, cmd = m.logViewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) applyScenario(msg scenarioLoadedMsg) (tea.Model, tea.Cmd) {
	if m.engine != nil {
		m.engine.Close()
		m.engine = nil
	}
	m.config = msg.config
	m.selectedFile = msg.path
	m.source = sourceScenario
	m.err = nil

	sessions := append([]types.Session(nil), m.config.Sessions...)
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	items := make([]list.Item, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionItem(s))
	}
	listHeight := (m.height - 7) / 2
	m.primary = newPanelList(items, listHeight)
	m.secondary = newPanelList(nil, listHeight)
	m.activePanel = 0

	m.config.Globals.Capture = m.appConfig.CapturePath(m.config.Globals.Capture)
	e, err := engine.NewEngine(m.config, logPathFor(m.appConfig, msg.path))
	if err != nil {
		m.err = err
		m.screen = screenLoading
		return m, nil
	}
	m.engine = e
	m.screen = screenViewConfig

	m.logViewport = viewport.New(10, 10)
	m.logContent = fmt.Sprintf("Loaded %d sessions from %s. Press r to run.", len(sessions), filepath.Base(msg.path))
	m.logViewport.SetContent(m.logContent)

	return m, waitForLog(e.Log)
}

func (m Model) applyCapture(msg captureLoadedMsg) (tea.Model, tea.Cmd) {
	if m.engine != nil {
		m.engine.Close()
		m.engine = nil
	}
	m.config = nil
	m.selectedFile = msg.path
	m.source = sourceCapture
	m.err = nil

	items := make([]list.Item, 0, len(msg.records))
	malformed := 0
	for _, r := range msg.records {
		items = append(items, packetFromRecord(r))
		if r.Err != nil {
			malformed++
		}
	}
	m.primary = newPanelList(items, m.height-7)
	m.secondary = newPanelList(nil, 0)
	m.activePanel = 0
	m.screen = screenViewConfig

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d datagrams, %d malformed\n", filepath.Base(msg.path), len(msg.records), malformed)
	if n := len(msg.records); n > 1 {
		span := msg.records[n-1].Timestamp.Sub(msg.records[0].Timestamp)
		fmt.Fprintf(&sb, "span %s\n", span)
	}
	m.logViewport = viewport.New(10, 10)
	m.logContent = sb.String()
	m.logViewport.SetContent(m.logContent)
	return m, nil
}

// refreshInbound mirrors the engine's received datagrams into the secondary list.
func (m *Model) refreshInbound() {
	if m.engine == nil || m.source != sourceScenario {
		return
	}
	in := m.engine.Inbound()
	if len(in) == len(m.secondary.Items()) {
		return
	}
	items := make([]list.Item, 0, len(in))
	for i, d := range in {
		items = append(items, packetFromInbound(i, d))
	}
	m.secondary.SetItems(items)
}

func (m Model) selectedSession() (int, bool) {
	if m.activeView != 0 || m.activePanel != 0 || m.source != sourceScenario {
		return 0, false
	}
	s, ok := m.primary.SelectedItem().(sessionItem)
	return s.ID, ok
}

func (m Model) listWidth(availWidth int) int {
	w := defaultListWidth
	if w > availWidth/3 {
		w = availWidth / 3
	}
	if w < minListWidth {
		w = minListWidth
	}
	return w
}

func logPathFor(appConfig *config.Config, source string) string {
	if source == "" {
		return ""
	}
	base := filepath.Base(source)
	return filepath.Join(appConfig.LogsDir, strings.TrimSuffix(base, filepath.Ext(base))+".log")
}

func loadCmd(source sourceType, path, recentDir string, saveCopy bool) tea.Cmd {
	return func() tea.Msg {
		if source == sourceCapture {
			records, err := capture.Read(path, capture.Filter{})
			if err != nil {
				return errMsg{err}
			}
			return captureLoadedMsg{records: records, path: path}
		}

		cfg, err := config.LoadScenario(path)
		if err != nil {
			return errMsg{err}
		}

		finalPath := path
		if saveCopy {
			newPath, err := lua.SaveToRecent(cfg, path, recentDir)
			if err != nil {
				return errMsg{err}
			}
			finalPath = newPath
		}
		return scenarioLoadedMsg{config: cfg, path: finalPath}
	}
}

type scenarioLoadedMsg struct {
	config *types.Config
	path   string
}

type captureLoadedMsg struct {
	records []capture.Record
	path    string
}

type errMsg struct{ err error }
type editorFinishedMsg struct{ err error }
type logMsg string

func waitForLog(logger *engine.Logger) tea.Cmd {
	return func() tea.Msg {
		ch := logger.Chan()
		if ch == nil {
			return nil
		}
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg(msg)
	}
}
