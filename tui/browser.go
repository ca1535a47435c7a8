package tui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/samaelod/paesim/capture"
)

const previewPackets = 20

// FileBrowser picks a scenario or capture file and previews the entry under the cursor.
type FileBrowser struct {
	List           list.Model
	CurrentDir     string
	PreviewContent string
	AllowedTypes   []string

	height      int
	previewPath string
}

type fileItem struct {
	name  string
	path  string
	isDir bool
	size  int64
}

func (i fileItem) Title() string {
	if i.isDir {
		return i.name + "/"
	}
	return i.name
}

func (i fileItem) Description() string {
	if i.isDir {
		return "directory"
	}
	return fmt.Sprintf("%d bytes", i.size)
}

func (i fileItem) FilterValue() string { return i.name }

type browserDelegate struct {
	allowedTypes []string
}

func (d browserDelegate) Height() int                         { return 1 }
func (d browserDelegate) Spacing() int                        { return 0 }
func (d browserDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d browserDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(fileItem)
	if !ok {
		return
	}
	if index == m.Index() {
		fmt.Fprint(w, styleSelected.Render("> "+i.Title()))
		return
	}
	style := styleSubtext.Faint(true)
	switch {
	case i.isDir:
		style = styleRow.Bold(true)
	case hasAllowedExt(i.name, d.allowedTypes):
		style = lipgloss.NewStyle().Foreground(colorPrimary)
	}
	fmt.Fprint(w, style.Render("  "+i.Title()))
}

func NewFileBrowser(allowedTypes []string) FileBrowser {
	l := list.New(nil, browserDelegate{allowedTypes: allowedTypes}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	cwd, _ := os.Getwd()
	fb := FileBrowser{List: l, AllowedTypes: allowedTypes}
	fb.chdir(cwd)
	return fb
}

// listDir returns the parent link, then directories, then files. Dotfiles are hidden.
func listDir(dir string) ([]list.Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	var items []list.Item
	if parent := filepath.Dir(dir); parent != dir {
		items = append(items, fileItem{name: "..", path: parent, isDir: true})
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		it := fileItem{name: e.Name(), path: filepath.Join(dir, e.Name()), isDir: e.IsDir()}
		if info, err := e.Info(); err == nil {
			it.size = info.Size()
		}
		items = append(items, it)
	}
	return items, nil
}

func (fb *FileBrowser) chdir(dir string) {
	items, err := listDir(dir)
	if err != nil {
		fb.PreviewContent = styleError.Render(err.Error())
		return
	}
	fb.CurrentDir = dir
	fb.List.SetItems(items)
	fb.List.ResetSelected()
	fb.previewPath = ""
	fb.updatePreview()
}

// HasValidFilesInDir reports whether dir holds at least one selectable file.
func (fb *FileBrowser) HasValidFilesInDir(dir string) bool {
	items, err := listDir(dir)
	if err != nil {
		return false
	}
	for _, it := range items {
		if fi := it.(fileItem); !fi.isDir && hasAllowedExt(fi.name, fb.AllowedTypes) {
			return true
		}
	}
	return false
}

func (fb *FileBrowser) SelectedHasValidExtension() bool {
	fi, ok := fb.List.SelectedItem().(fileItem)
	return ok && !fi.isDir && hasAllowedExt(fi.name, fb.AllowedTypes)
}

func hasAllowedExt(name string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// updatePreview rebuilds the preview when the cursor moved to another entry.
func (fb *FileBrowser) updatePreview() {
	fi, ok := fb.List.SelectedItem().(fileItem)
	if !ok {
		fb.PreviewContent, fb.previewPath = "", ""
		return
	}
	if fi.path == fb.previewPath {
		return
	}
	fb.previewPath = fi.path
	fb.PreviewContent = truncateLines(preview(fi, fb.AllowedTypes), fb.height)
}

func preview(fi fileItem, allowed []string) string {
	if fi.isDir {
		items, _ := listDir(fi.path)
		return fmt.Sprintf("Directory: %s\n\nItems: %d", fi.name, len(items))
	}
	if !hasAllowedExt(fi.name, allowed) {
		return "File type not supported."
	}
	switch strings.ToLower(filepath.Ext(fi.name)) {
	case ".lua", ".toml":
		content, err := os.ReadFile(fi.path)
		if err != nil {
			return "Error reading file: " + err.Error()
		}
		return string(content)
	default:
		return capturePreview(fi)
	}
}

// capturePreview lists the first decoded datagrams of a capture file.
func capturePreview(fi fileItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Capture file, %d bytes\n\n", fi.size)
	records, err := capture.Read(fi.path, capture.Filter{})
	if err != nil {
		sb.WriteString("Cannot decode: " + err.Error())
		return sb.String()
	}
	fmt.Fprintf(&sb, "%d UDP datagrams\n\n", len(records))
	for i, r := range records {
		if i == previewPackets {
			sb.WriteString("...")
			break
		}
		if r.Err != nil {
			fmt.Fprintf(&sb, "%4d  %s -> %s  malformed\n", r.Index, r.Src, r.Dst)
			continue
		}
		fmt.Fprintf(&sb, "%4d  %s\n", r.Index, r.Packet)
	}
	return sb.String()
}

func truncateLines(s string, n int) string {
	if n <= 0 {
		n = 10
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n... (truncated)"
}

func (fb FileBrowser) Update(msg tea.Msg) (FileBrowser, tea.Cmd) {
	var cmd tea.Cmd
	fb.List, cmd = fb.List.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && !fb.List.SettingFilter() {
		switch key.String() {
		case "enter":
			// files are opened by the parent model
			if fi, ok := fb.List.SelectedItem().(fileItem); ok && fi.isDir {
				fb.chdir(fi.path)
			}
		case "backspace", "left":
			if parent := filepath.Dir(fb.CurrentDir); parent != fb.CurrentDir {
				fb.chdir(parent)
			}
		}
	}

	fb.updatePreview()
	return fb, cmd
}

func (fb *FileBrowser) SetSize(width, height int) {
	fb.height = height
	fb.List.SetSize(width, height)
	fb.previewPath = ""
	fb.updatePreview()
}

func (fb FileBrowser) View() string {
	return fb.List.View()
}
