package tui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/samaelod/paesim/config"
	"github.com/samaelod/paesim/engine"
	"github.com/samaelod/paesim/types"
)

type screen int

const (
	screenSourceSelect screen = iota
	screenFilePicker
	screenLoading
	screenViewConfig
)

type sourceType int

const (
	sourceScenario sourceType = iota
	sourceCapture
)

var (
	scenarioTypes = []string{".lua", ".toml"}
	captureTypes  = []string{".pcap", ".pcapng", ".cap"}
)

type Model struct {
	screen screen
	source sourceType

	appConfig *config.Config
	config    *types.Config
	err       error

	// fileBrowser for selecting scenarios or captures
	fileBrowser FileBrowser

	// scenario mode: sessions on top, inbound datagrams below
	// capture mode: decoded packets only
	primary     list.Model
	secondary   list.Model
	activePanel int // 0: primary, 1: secondary

	width        int
	height       int
	selectedFile string

	menuCursor int // 0: scenario, 1: capture
	activeView int // 0: lists, 1: logs viewport

	version string

	engine      *engine.Engine
	logViewport viewport.Model
	logContent  string // cached log content for editor
}

func (m Model) hasSecondary() bool {
	return m.source == sourceScenario
}

const (
	minWindowWidth   = 80
	minWindowHeight  = 20
	defaultListWidth = 34
	minListWidth     = 20
	footerHeight     = 3
)
