package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/opscall/opscall/pkg/tree"
)

// treeRow is one flattened line of a projected tree.
type treeRow struct {
	node  *tree.Node
	depth int
}

// treePanel renders a projected message tree as an indented row list.  The
// request panel shows a cursor and accepts edits; the response panel reuses
// the same rendering read-only.
type treePanel struct {
	title  string
	rows   []treeRow
	cursor int
	offset int
	width  int
	height int

	showCursor bool
}

func newTreePanel(title string, showCursor bool) treePanel {
	return treePanel{title: title, showCursor: showCursor}
}

// SetRoot reflattens the panel from a tree root.  The cursor is clamped so
// structural changes (added elements, reloads) keep it on a valid row.
func (p *treePanel) SetRoot(root *tree.Node) {
	p.rows = p.rows[:0]
	if root != nil {
		p.flatten(root, 0)
	}
	if p.cursor >= len(p.rows) {
		p.cursor = len(p.rows) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

func (p *treePanel) flatten(n *tree.Node, depth int) {
	p.rows = append(p.rows, treeRow{node: n, depth: depth})
	for _, c := range n.Children {
		p.flatten(c, depth+1)
	}
}

// CursorUp moves the cursor up.
func (p *treePanel) CursorUp() {
	if p.cursor > 0 {
		p.cursor--
		p.ensureVisible()
	}
}

// CursorDown moves the cursor down.
func (p *treePanel) CursorDown() {
	if p.cursor < len(p.rows)-1 {
		p.cursor++
		p.ensureVisible()
	}
}

// Selected returns the node under the cursor.
func (p *treePanel) Selected() *tree.Node {
	if p.cursor >= 0 && p.cursor < len(p.rows) {
		return p.rows[p.cursor].node
	}
	return nil
}

func (p *treePanel) ensureVisible() {
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

// View renders the tree panel.  editLine, when non-empty, replaces the
// selected row's value with the live edit input.
func (p *treePanel) View(editLine string) string {
	if len(p.rows) == 0 {
		return panelBorder.Width(p.width).Height(p.height).Render("  (empty)")
	}

	visible := p.height - 2
	if visible < 1 {
		visible = 1
	}

	var lines []string
	end := p.offset + visible
	if end > len(p.rows) {
		end = len(p.rows)
	}

	for i := p.offset; i < end; i++ {
		row := p.rows[i]
		editing := editLine != "" && p.showCursor && i == p.cursor
		line := p.renderRow(row, editing, editLine)
		if p.showCursor && i == p.cursor && !editing {
			line = rowSelected.Reverse(true).Render(line)
		}
		lines = append(lines, line)
	}
	for len(lines) < visible {
		lines = append(lines, "")
	}

	title := panelTitle.Render(p.title)
	return panelBorder.Width(p.width).Height(p.height).Render(
		title + "\n" + strings.Join(lines, "\n"),
	)
}

func (p *treePanel) renderRow(row treeRow, editing bool, editLine string) string {
	n := row.node

	glyph := GlyphLeaf
	switch {
	case n.Name == "ERROR":
		glyph = GlyphError
	case n.Desc == nil:
	case n.Desc.IsRecord():
		glyph = GlyphRecord
	case n.Desc.IsArrayOfRecords():
		glyph = GlyphArray
	}

	indent := strings.Repeat("  ", row.depth)
	value := n.Expression
	if editing {
		value = editLine
	}

	// Truncate plain text before styling so escape codes stay intact.
	prefix := " " + indent + glyph + " " + n.Name
	typePart := ""
	if n.TypeName != "" {
		typePart = " (" + n.TypeName + ")"
	}
	maxW := p.width - 3
	prefix = runewidth.Truncate(prefix, maxW, "…")
	avail := maxW - runewidth.StringWidth(prefix) - runewidth.StringWidth(typePart) - 3
	if avail < 0 {
		typePart = ""
		avail = maxW - runewidth.StringWidth(prefix) - 3
	}

	line := prefix
	if typePart != "" {
		line += typeStyle.Render(typePart)
	}
	if value != "" && avail > 0 {
		value = runewidth.Truncate(value, avail, "…")
		if editing || n.Editable {
			line += " = " + exprStyle.Render(value)
		} else {
			line += " = " + valueStyle.Render(value)
		}
	}
	return line
}
