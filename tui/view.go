package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/samaelod/paesim/capture"
	"github.com/samaelod/paesim/engine"
	"github.com/samaelod/paesim/protocol"
	"github.com/samaelod/paesim/types"
)

type sessionItem types.Session

func (s sessionItem) Title() string {
	return fmt.Sprintf("[%d] %s %s", s.ID, types.Session(s).Label(), s.Pattern)
}
func (s sessionItem) Description() string { return types.Session(s).Addr() }
func (s sessionItem) FilterValue() string { return s.Title() }

// packetItem is one decoded datagram, from a capture file or the receiver.
type packetItem struct {
	index  int
	at     time.Time
	delta  int
	from   string
	to     string
	raw    []byte
	packet protocol.Packet
	err    error
}

func packetFromRecord(r capture.Record) packetItem {
	return packetItem{
		index:  r.Index,
		at:     r.Timestamp,
		delta:  r.TDelta,
		from:   r.Src,
		to:     r.Dst,
		raw:    r.Raw,
		packet: r.Packet,
		err:    r.Err,
	}
}

func packetFromInbound(i int, in engine.Inbound) packetItem {
	return packetItem{
		index:  i,
		at:     in.At,
		from:   in.From,
		raw:    in.Raw,
		packet: in.Packet,
		err:    in.Err,
	}
}

func (p packetItem) Title() string {
	if p.err != nil {
		return fmt.Sprintf("#%d malformed (%d bytes)", p.index, len(p.raw))
	}
	h := p.packet.Header
	if c, ok := p.packet.Body.(protocol.Countdown); ok {
		return fmt.Sprintf("#%d seq=%d cd=%d %s", p.index, h.Sequence, c.Value, c.Color)
	}
	return fmt.Sprintf("#%d seq=%d %s", p.index, h.Sequence, h.Type)
}
func (p packetItem) Description() string { return p.from }
func (p packetItem) FilterValue() string { return p.Title() }

// lineDelegate renders any list.DefaultItem as one highlighted line.
type lineDelegate struct{}

func renderScrollbar(vp viewport.Model, height int) string {
	total := vp.TotalLineCount()
	visible := vp.VisibleLineCount()

	if total <= visible {
		return ""
	}

	trackHeight := height
	if trackHeight < 1 {
		trackHeight = visible
	}

	thumbPos := int(float64(trackHeight-1) * vp.ScrollPercent())
	thumbPos = max(0, min(thumbPos, trackHeight-1))

	var sb strings.Builder
	for i := 0; i < trackHeight; i++ {
		if i == thumbPos {
			sb.WriteString(scrollbarThumb.Render("█"))
		} else {
			sb.WriteString(scrollbarTrack.Render("│"))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func (d lineDelegate) Height() int                               { return 1 }
func (d lineDelegate) Spacing() int                              { return 0 }
func (d lineDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d lineDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(list.DefaultItem)
	if !ok {
		return
	}

	str := i.Title()
	if maxWidth := m.Width() - 2; maxWidth > 1 && len(str) > maxWidth {
		str = str[:maxWidth-1] + "…"
	}

	if index == m.Index() {
		fmt.Fprint(w, styleSelected.Render("> "+str))
		return
	}
	style := styleRow
	if p, ok := listItem.(packetItem); ok {
		if p.err != nil {
			style = style.Foreground(colorError)
		} else if c, ok := p.packet.Body.(protocol.Countdown); ok {
			style = style.Foreground(countdownColor(c.Color))
		}
	}
	fmt.Fprint(w, style.Render("  "+str))
}

func (m Model) View() string {
	var content string

	// Window border (2) + margin (2)
	windowWidth := m.width - 4
	windowHeight := m.height - 4

	if windowWidth < minWindowWidth || windowHeight < minWindowHeight {
		return styleScreenTooSmall.
			Width(m.width).
			Height(m.height).
			Render("Terminal window is too small.\nPlease resize.")
	}

	appTitle := styleAppTitle.Width(windowWidth).Render("PAESIM " + m.version)

	switch m.screen {

	case screenSourceSelect:
		menuTitle := styleTitle.Render("Select Source")

		cardScenario := styleMenuItem.Render("Scenario")
		cardCapture := styleMenuItem.Render("Capture File")
		if m.menuCursor == 0 {
			cardScenario = styleMenuItemSelected.Render("Scenario")
		} else {
			cardCapture = styleMenuItemSelected.Render("Capture File")
		}

		menuContent := lipgloss.JoinVertical(lipgloss.Center,
			menuTitle,
			"\n",
			lipgloss.JoinHorizontal(lipgloss.Center, cardScenario, cardCapture),
		)

		content = lipgloss.JoinVertical(lipgloss.Top,
			appTitle,
			lipgloss.Place(
				windowWidth, windowHeight-1,
				lipgloss.Center, lipgloss.Center,
				styleMenuContainer.Render(menuContent),
			),
		)

	case screenFilePicker:
		// Browser (1/3) | Preview (2/3)
		listWidth := windowWidth / 3
		previewWidth := windowWidth - listWidth
		panelHeight := windowHeight - 1

		browserColor := colorSecondary
		if m.fileBrowser.HasValidFilesInDir(m.fileBrowser.CurrentDir) {
			browserColor = colorSuccess
		}

		previewColor := colorSecondary
		if fi, ok := m.fileBrowser.List.SelectedItem().(fileItem); ok && !fi.isDir {
			if m.fileBrowser.SelectedHasValidExtension() {
				previewColor = colorSuccess
			} else {
				previewColor = colorError
			}
		}

		browserTitle := styleTitle.MarginBottom(1).Render("Select File")
		browserView := stylePanelTitled.
			BorderForeground(browserColor).
			Width(listWidth - 4).
			Height(panelHeight).
			Render(browserTitle + "\n" + m.fileBrowser.View())

		previewTitle := styleTitle.MarginBottom(1).Render("File Preview")
		contentHeight := panelHeight - 5 // border, title, margin, dots
		previewLines := strings.Split(m.fileBrowser.PreviewContent, "\n")
		if len(previewLines) > contentHeight && contentHeight > 1 {
			previewLines = append(previewLines[:contentHeight-1], "...")
		}
		previewView := stylePanelTitled.
			BorderForeground(previewColor).
			Width(previewWidth).
			Height(panelHeight).
			Render(previewTitle + "\n" + strings.Join(previewLines, "\n"))

		content = lipgloss.Place(
			windowWidth, windowHeight,
			lipgloss.Center, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Top,
				appTitle,
				lipgloss.JoinHorizontal(lipgloss.Top, browserView, previewView),
			),
		)

	case screenLoading:
		status := "Loading..."
		if m.err != nil {
			status = styleError.Render("Error: "+m.err.Error()) + "\n\n" + styleSubtext.Render("esc to go back")
		}

		content = lipgloss.Place(
			windowWidth, windowHeight,
			lipgloss.Center, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center,
				appTitle,
				"\n",
				status,
			),
		)

	case screenViewConfig:
		content = m.viewMain(appTitle, windowWidth, windowHeight)
	}

	return styleWindow.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m Model) viewMain(appTitle string, windowWidth, windowHeight int) string {
	availWidth := windowWidth
	availHeight := windowHeight - 1 - footerHeight

	listWidth := m.listWidth(availWidth)
	rightWidth := max(availWidth-listWidth, 0)

	// logs take 70% when focused, 40% otherwise
	logsHeight := availHeight * 40 / 100
	if m.activeView == 1 {
		logsHeight = availHeight * 70 / 100
	}
	detailsHeight := availHeight - logsHeight
	if detailsHeight < 10 {
		detailsHeight = 10
		logsHeight = availHeight - detailsHeight
	}

	// Left column
	primaryTitle, secondaryTitle := "Sessions", "Inbound"
	if m.source == sourceCapture {
		primaryTitle = "Packets"
	}

	var leftColumn string
	if m.hasSecondary() {
		listHeight := (availHeight - 6) / 2
		m.primary.SetSize(listWidth-4, listHeight)
		m.secondary.SetSize(listWidth-4, listHeight)
		leftColumn = lipgloss.JoinVertical(lipgloss.Top,
			m.listPanel(primaryTitle, m.primary, 0, listWidth, listHeight),
			m.listPanel(secondaryTitle, m.secondary, 1, listWidth, listHeight),
		)
	} else {
		listHeight := availHeight - 4
		m.primary.SetSize(listWidth-4, listHeight)
		leftColumn = m.listPanel(primaryTitle, m.primary, 0, listWidth, listHeight+1)
	}

	// Right top: details of the selection
	detailsContentHeight := max(detailsHeight-3, 4)
	var detailsTitle, detailsContent string
	detailsBorderColor := colorSubtext

	selected := m.primary.SelectedItem()
	if m.activePanel == 1 {
		selected = m.secondary.SelectedItem()
	}
	switch it := selected.(type) {
	case sessionItem:
		detailsTitle = "Session Details"
		var st types.SessionState
		if m.engine != nil {
			st = m.engine.State(it.ID)
		}
		detailsContent = renderSessionDetails(types.Session(it), st, m.nextSequence(it.ID), rightWidth-4, detailsContentHeight)
		detailsBorderColor = statusColor(st.Status)
	case packetItem:
		detailsTitle = "Packet Details"
		detailsContent = renderPacketDetails(it, rightWidth-4, detailsContentHeight)
		if it.err != nil {
			detailsBorderColor = colorError
		}
	default:
		detailsTitle = "Details"
		detailsContent = fitLines(styleSubtext.Render("Nothing selected"), detailsContentHeight)
	}
	if m.err != nil {
		detailsContent = fitLines(styleError.Render(m.err.Error())+"\n"+detailsContent, detailsContentHeight)
	}

	rightTop := stylePanelTitled.
		BorderForeground(detailsBorderColor).
		Width(rightWidth).
		Height(detailsHeight).
		Render(styleTitle.MarginBottom(1).Render(detailsTitle) + "\n" + detailsContent)

	// Right bottom: logs
	logsContentHeight := max(logsHeight-6, 2)
	m.logViewport.Width = rightWidth - 7 // padding, border, scrollbar
	m.logViewport.Height = logsContentHeight

	logsColor := colorSubtext
	if m.activeView == 1 {
		logsColor = colorSecondary
	}
	scrollbarCol := scrollbarTrack.Width(1).Render(renderScrollbar(m.logViewport, logsContentHeight))
	logsContent := styleTitle.MarginBottom(1).Render("Logs") + "\n" +
		lipgloss.JoinHorizontal(lipgloss.Top, m.logViewport.View(), scrollbarCol)

	rightBottom := stylePanelTitled.
		BorderForeground(logsColor).
		Width(rightWidth).
		Height(logsHeight - 2).
		Render(logsContent)

	topArea := lipgloss.JoinHorizontal(lipgloss.Top,
		leftColumn,
		lipgloss.JoinVertical(lipgloss.Top, rightTop, rightBottom),
	)

	footerView := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(colorSubtext).
		Padding(0, 1).
		Width(windowWidth - 2).
		Render(m.footer())

	return lipgloss.JoinVertical(lipgloss.Top,
		appTitle,
		lipgloss.JoinVertical(lipgloss.Top, topArea, footerView),
	)
}

func (m Model) listPanel(title string, l list.Model, panel, width, height int) string {
	border := colorSubtext
	if m.activeView == 0 && m.activePanel == panel {
		border = colorSecondary
	}
	return stylePanelTitled.
		BorderForeground(border).
		Width(width - 4).
		Height(height + 2).
		Render(styleTitle.MarginBottom(1).Render(title) + "\n" + l.View())
}

func (m Model) nextSequence(id int) uint16 {
	if m.engine == nil {
		return 0
	}
	return m.engine.Sequence(id)
}

func (m Model) footer() string {
	keyStyle := lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(colorSubtext)
	sep := descStyle.Render(" • ")
	hint := func(key, desc string) string {
		return keyStyle.Render(key) + descStyle.Render(" "+desc)
	}

	parts := []string{hint("<tab>", "switch focus")}
	switch {
	case m.activeView == 1:
		parts = append(parts, hint("e", "editor"), hint("g", "top"), hint("G", "bottom"))
	case m.source == sourceScenario:
		parts = append(parts,
			hint("←/→", "switch"),
			hint("e", "edit"),
			hint("u", "reload"),
			hint("r", "run"),
			hint("s", "stop"),
			hint("S", "stop all"),
		)
	default:
		parts = append(parts, hint("u", "reload"))
	}
	parts = append(parts, hint("q", "quit"))
	return strings.Join(parts, sep)
}

func detailRow(valueMaxWidth int) func(label, value string) string {
	valueMaxWidth = max(valueMaxWidth, 5)
	return func(label, value string) string {
		if len(value) > valueMaxWidth {
			value = value[:valueMaxWidth-1] + "…"
		}
		return lipgloss.JoinHorizontal(lipgloss.Left,
			styleLabel.Render(label),
			styleValue.Render(value),
		)
	}
}

func renderSessionDetails(s types.Session, st types.SessionState, nextSeq uint16, width, height int) string {
	row := detailRow(width - 2 - 12 - 1)

	total := 0
	if p, err := engine.PatternFor(s); err == nil {
		total = p.Total()
	}
	ack := "not requested"
	if s.AckRequired {
		ack = "requested"
	}
	config := lipgloss.JoinVertical(lipgloss.Left,
		row("Name:", s.Label()),
		row("AFFCAR:", s.Addr()),
		row("PAE:", fmt.Sprintf("%s:%d", s.SourceHost, s.SourcePort)),
		row("Address:", fmt.Sprintf("%d -> %d", s.SourceAddress, s.DestinationAddress)),
		row("Pattern:", fmt.Sprintf("%s, %d packets from %d", s.Pattern, total, s.InitialCountdown())),
		row("Mode:", fmt.Sprintf("affcar1=%d affcar2=%d", protocol.Flag(s.AFFCAR1), protocol.Flag(s.AFFCAR2))),
		row("Ack:", ack),
	)

	stateHeader := lipgloss.NewStyle().
		MarginTop(1).
		Foreground(colorSecondary).
		Bold(true).
		Render("State")

	lines := []string{
		row("Status:", st.Status.String()),
		row("Phase:", st.Phase),
		row("Countdown:", fmt.Sprintf("%d", st.Countdown)),
		row("Sent:", fmt.Sprintf("%d (%d failed)", st.Sent, st.Failed)),
		row("Next seq:", fmt.Sprintf("%d", nextSeq)),
	}
	if st.AckReceived {
		lines = append(lines, row("Last ack:", fmt.Sprintf("code %d", st.LastAckCode)))
	}
	if st.LastError != "" {
		lines = append(lines, row("Error:", st.LastError))
	}

	return fitLines(lipgloss.JoinVertical(lipgloss.Left, config, stateHeader, strings.Join(lines, "\n")), height)
}

func renderPacketDetails(p packetItem, width, height int) string {
	row := detailRow(width - 2 - 12 - 1)

	rows := []string{
		row("Time:", p.at.Format("15:04:05.000")),
		row("From:", p.from),
	}
	if p.to != "" {
		rows = append(rows, row("To:", p.to), row("Delta:", fmt.Sprintf("+%d ms", p.delta)))
	}

	if p.err != nil {
		rows = append(rows, row("Error:", p.err.Error()))
	} else {
		h := p.packet.Header
		rows = append(rows,
			row("Seq:", fmt.Sprintf("%d", h.Sequence)),
			row("Type:", fmt.Sprintf("%s (%d)", h.Type, uint8(h.Type))),
			row("Address:", fmt.Sprintf("%d -> %d", h.Source, h.Destination)),
			row("Ack req:", fmt.Sprintf("%t (%#02x)", h.AckWanted(), h.AckRequest)),
		)
		switch b := p.packet.Body.(type) {
		case protocol.Countdown:
			rows = append(rows,
				row("Countdown:", fmt.Sprintf("%d", b.Value)),
				row("Color:", b.Color.String()),
				row("Mode:", fmt.Sprintf("affcar1=%d affcar2=%d clear=%d", b.AFFCAR1, b.AFFCAR2, b.Clear)),
			)
		case protocol.StatusResponse:
			rows = append(rows,
				row("AFFCAR id:", fmt.Sprintf("%d", b.AFFCARID)),
				row("Software:", fmt.Sprintf("%d.%d", b.SwMajor, b.SwMinor)),
				row("Health:", fmt.Sprintf("%d", b.Health)),
				row("DAM:", fmt.Sprintf("%#08x %#08x", b.DAM1, b.DAM0)),
			)
		case protocol.Acknowledgement:
			rows = append(rows, row("Ack code:", fmt.Sprintf("%d", b.Code)))
		default:
			rows = append(rows, row("Body:", styleSubtext.Render("not decoded")))
		}
	}
	rows = append(rows, row("Raw:", protocol.Hex(p.raw)))

	return fitLines(strings.Join(rows, "\n"), height)
}

// fitLines pads or cuts content to exactly height lines.
func fitLines(content string, height int) string {
	lines := strings.Split(content, "\n")
	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}
