package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// servicePicker renders the scrollable service list.
type servicePicker struct {
	names  []string
	cursor int
	offset int
	width  int
	height int
}

func newServicePicker() servicePicker {
	return servicePicker{}
}

// SetNames replaces the listed services and resets the cursor.
func (p *servicePicker) SetNames(names []string) {
	p.names = names
	p.cursor = 0
	p.offset = 0
}

// CursorUp moves the cursor up.
func (p *servicePicker) CursorUp() {
	if p.cursor > 0 {
		p.cursor--
		p.ensureVisible()
	}
}

// CursorDown moves the cursor down.
func (p *servicePicker) CursorDown() {
	if p.cursor < len(p.names)-1 {
		p.cursor++
		p.ensureVisible()
	}
}

// Selected returns the service name under the cursor.
func (p *servicePicker) Selected() string {
	if p.cursor >= 0 && p.cursor < len(p.names) {
		return p.names[p.cursor]
	}
	return ""
}

func (p *servicePicker) ensureVisible() {
	visible := p.height - 2
	if visible < 1 {
		visible = 1
	}
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+visible {
		p.offset = p.cursor - visible + 1
	}
}

// View renders the service list panel.
func (p *servicePicker) View() string {
	if len(p.names) == 0 {
		return panelBorder.Width(p.width).Height(p.height).Render("  No services available")
	}

	visible := p.height - 2
	if visible < 1 {
		visible = 1
	}

	var lines []string
	end := p.offset + visible
	if end > len(p.names) {
		end = len(p.names)
	}

	for i := p.offset; i < end; i++ {
		name := runewidth.Truncate(p.names[i], p.width-6, "…")
		line := "  " + name
		if i == p.cursor {
			line = rowSelected.Reverse(true).Render(line)
		} else {
			line = rowNormal.Render(line)
		}
		lines = append(lines, line)
	}
	for len(lines) < visible {
		lines = append(lines, "")
	}

	title := panelTitle.Render("Services")
	return panelBorder.Width(p.width).Height(p.height).Render(
		title + "\n" + strings.Join(lines, "\n"),
	)
}
