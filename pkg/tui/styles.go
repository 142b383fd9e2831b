// Package tui implements the interactive terminal front-end: a service
// picker, an editable request tree, and a read-only response pane, all
// rendered as a Bubble Tea app over the same session pipeline the CLI uses.
package tui

import "github.com/charmbracelet/lipgloss"

// Node glyphs — convey structure without relying on color alone.
const (
	GlyphRecord = "▸"
	GlyphArray  = "≡"
	GlyphLeaf   = "·"
	GlyphError  = "✗"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

// --- Header styles ---

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var serviceBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(colorYellow).
	Padding(0, 1)

// --- Panel styles ---

var (
	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)

	panelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)
)

// --- Row styles ---

var (
	rowNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	rowSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	typeStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	exprStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorBlue)
)

// --- Status bar styles ---

var (
	statusOKStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	statusWarnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)
)

// --- Key bar styles ---

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

// --- Spinner style ---

var spinnerStyle = lipgloss.NewStyle().
	Foreground(colorYellow)
