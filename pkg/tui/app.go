package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opscall/opscall/pkg/eval"
	"github.com/opscall/opscall/pkg/registry"
	"github.com/opscall/opscall/pkg/session"
	"github.com/opscall/opscall/pkg/tree"
)

// --- Tea messages ---

// servicesMsg carries the registry listing.
type servicesMsg struct {
	names []string
	err   error
}

// sessionMsg is sent after a service is resolved into a session.
type sessionMsg struct {
	sess *session.Session
	err  error
}

// callDoneMsg is sent after a service invocation completes.
type callDoneMsg struct {
	resp  *tree.Node
	diags []eval.Diagnostic
	err   error
}

// archiveDoneMsg is sent after a save or load completes.
type archiveDoneMsg struct {
	loaded bool
	err    error
}

// --- Mode and prompt state ---

type mode int

const (
	modePicker mode = iota
	modeEditor
)

type promptKind int

const (
	promptNone promptKind = iota
	promptExpr
	promptCounter
	promptSave
	promptLoad
)

// --- Model ---

// Config holds the parameters needed to launch the TUI.
type Config struct {
	Registry registry.Registry
	Archive  string
	Timeout  time.Duration
	Version  string
}

// Model is the top-level Bubble Tea model for the TUI.
type Model struct {
	cfg Config

	mode     mode
	picker   servicePicker
	request  treePanel
	response treePanel
	spinner  spinner.Model

	sess     *session.Session
	respRoot *tree.Node

	// Prompt input shared by expression, counter, save and load editing.
	prompt     promptKind
	promptPath string
	input      textinput.Model

	calling bool
	status  string

	width  int
	height int
}

// Run starts the TUI against the given registry.
func Run(cfg Config) error {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Archive == "" {
		cfg.Archive = "requests.yaml"
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ti := textinput.New()
	ti.CharLimit = 512

	m := Model{
		cfg:      cfg,
		picker:   newServicePicker(),
		request:  newTreePanel("Request", true),
		response: newTreePanel("Response", false),
		spinner:  sp,
		input:    ti,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init starts the spinner and loads the service list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadServices())
}

// loadServices lists resolvable services from the registry.
func (m Model) loadServices() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
		defer cancel()
		names, err := session.ListAvailable(ctx, m.cfg.Registry)
		return servicesMsg{names: names, err: err}
	}
}

// openService resolves the selected service into a fresh session.
func (m Model) openService(name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
		defer cancel()
		sess, err := session.New(ctx, m.cfg.Registry, name)
		return sessionMsg{sess: sess, err: err}
	}
}

// callService invokes the service with the current expression map.
func (m Model) callService() tea.Cmd {
	sess := m.sess
	timeout := m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, diags, err := sess.Call(ctx)
		return callDoneMsg{resp: resp, diags: diags, err: err}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layoutPanels()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case servicesMsg:
		if msg.err != nil {
			m.status = "registry: " + msg.err.Error()
		} else {
			m.picker.SetNames(msg.names)
		}

	case sessionMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.sess = msg.sess
			m.respRoot = nil
			m.mode = modeEditor
			m.request.SetRoot(m.sess.Tree())
			m.response.SetRoot(nil)
			m.status = ""
			m.layoutPanels()
		}

	case callDoneMsg:
		m.calling = false
		m.respRoot = msg.resp
		m.response.SetRoot(msg.resp)
		switch {
		case msg.err != nil:
			m.status = msg.err.Error()
		case len(msg.diags) > 0:
			m.status = fmt.Sprintf("%d expression problem(s); defaults used", len(msg.diags))
		default:
			m.status = "ok"
		}

	case archiveDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else if msg.loaded {
			m.request.SetRoot(m.sess.Tree())
			m.status = "request loaded from " + m.cfg.Archive
		} else {
			m.status = "request saved to " + m.cfg.Archive
		}
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Prompt input active — route everything there.
	if m.prompt != promptNone {
		switch msg.String() {
		case "enter":
			return m.commitPrompt()
		case "esc":
			m.prompt = promptNone
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if key.Matches(msg, keys.Quit) {
		return m, tea.Quit
	}

	if m.mode == modePicker {
		switch {
		case key.Matches(msg, keys.Up):
			m.picker.CursorUp()
		case key.Matches(msg, keys.Down):
			m.picker.CursorDown()
		case key.Matches(msg, keys.Select):
			if name := m.picker.Selected(); name != "" {
				return m, m.openService(name)
			}
		}
		return m, nil
	}

	// Editor mode.
	switch {
	case key.Matches(msg, keys.Up):
		m.request.CursorUp()

	case key.Matches(msg, keys.Down):
		m.request.CursorDown()

	case key.Matches(msg, keys.Edit):
		node := m.request.Selected()
		if node == nil || !node.Editable || node.Desc == nil || !node.Desc.IsPrimitive() {
			m.status = "only editable value fields accept expressions"
			return m, nil
		}
		m.prompt = promptExpr
		m.promptPath = node.Path
		m.input.SetValue(node.Expression)
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, keys.Call):
		if m.calling {
			return m, nil
		}
		m.calling = true
		m.status = ""
		return m, m.callService()

	case key.Matches(msg, keys.AddElem):
		node := m.request.Selected()
		if node == nil {
			return m, nil
		}
		if _, err := m.sess.AddArrayElement(node.Path); err != nil {
			m.status = err.Error()
		} else {
			m.request.SetRoot(m.sess.Tree())
			m.status = ""
		}

	case key.Matches(msg, keys.DelElem):
		node := m.request.Selected()
		if node == nil || !node.IsArray() || len(node.Children) == 0 {
			m.status = "select a non-empty array field to remove from"
			return m, nil
		}
		if err := m.sess.RemoveArrayElement(node.Path, len(node.Children)-1); err != nil {
			m.status = err.Error()
		}

	case key.Matches(msg, keys.Counter):
		m.prompt = promptCounter
		m.input.SetValue(strconv.Itoa(m.sess.Counter()))
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, keys.Save):
		m.prompt = promptSave
		m.input.SetValue("")
		return m, m.input.Focus()

	case key.Matches(msg, keys.Load):
		m.prompt = promptLoad
		m.input.SetValue("")
		return m, m.input.Focus()

	case key.Matches(msg, keys.Back):
		m.mode = modePicker
		m.sess = nil
		m.respRoot = nil
		m.status = ""
	}

	return m, nil
}

// commitPrompt applies the prompt input according to its kind.
func (m Model) commitPrompt() (tea.Model, tea.Cmd) {
	kind := m.prompt
	text := m.input.Value()
	m.prompt = promptNone
	m.input.Blur()

	switch kind {
	case promptExpr:
		if err := m.sess.SetExpression(m.promptPath, text); err != nil {
			m.status = err.Error()
		} else {
			m.request.SetRoot(m.sess.Tree())
			m.status = ""
		}

	case promptCounter:
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			m.status = "counter must be an integer"
			return m, nil
		}
		if err := m.sess.SetCounter(n); err != nil {
			m.status = err.Error()
		} else {
			m.status = ""
		}

	case promptSave:
		sess, path := m.sess, m.cfg.Archive
		return m, func() tea.Msg {
			return archiveDoneMsg{err: sess.SaveRequest(path, text)}
		}

	case promptLoad:
		sess, path := m.sess, m.cfg.Archive
		return m, func() tea.Msg {
			return archiveDoneMsg{loaded: true, err: sess.LoadRequest(path, text)}
		}
	}
	return m, nil
}

// layoutPanels recalculates panel dimensions based on terminal size.
func (m *Model) layoutPanels() {
	if m.width == 0 || m.height == 0 {
		return
	}

	// Layout: header(1) + panels + status(1) + key bar(1).
	mainH := m.height - 3
	if mainH < 4 {
		mainH = 4
	}

	m.picker.width = m.width
	m.picker.height = mainH

	half := m.width / 2
	m.request.width = half
	m.request.height = mainH
	m.response.width = m.width - half
	m.response.height = mainH
}

// View renders the complete TUI.
func (m Model) View() string {
	header := m.renderHeader()

	var main string
	if m.mode == modePicker {
		main = m.picker.View()
	} else {
		editLine := ""
		if m.prompt == promptExpr {
			editLine = m.input.Value()
		}
		main = lipgloss.JoinHorizontal(lipgloss.Top,
			m.request.View(editLine), m.response.View(""))
	}

	status := m.renderStatus()
	keyBar := keyBarText(m.mode, m.prompt != promptNone)

	return header + "\n" + main + "\n" + status + "\n" + keyBar
}

// renderStatus builds the status line, or the prompt line when one is open.
func (m Model) renderStatus() string {
	if m.prompt != promptNone {
		label := ""
		switch m.prompt {
		case promptExpr:
			label = "expression " + m.promptPath
		case promptCounter:
			label = "counter"
		case promptSave:
			label = "save as label"
		case promptLoad:
			label = "load label"
		}
		return " " + keyStyle.Render(label+":") + " " + m.input.View()
	}
	if m.calling {
		return " " + m.spinner.View() + " calling..."
	}
	if m.status == "" {
		return ""
	}
	if m.status == "ok" {
		return " " + statusOKStyle.Render("ok")
	}
	if strings.Contains(m.status, "problem") || strings.Contains(m.status, "loaded") || strings.Contains(m.status, "saved") {
		return " " + statusWarnStyle.Render(m.status)
	}
	return " " + errorStyle.Render(m.status)
}

// renderHeader builds the top header line.
func (m Model) renderHeader() string {
	left := headerStyle.Render("opscall")
	if m.sess != nil {
		left += " " + serviceBadgeStyle.Render(m.sess.Service().Name)
		left += "  " + typeStyle.Render(fmt.Sprintf("i=%d", m.sess.Counter()))
	}

	right := ""
	if m.cfg.Version != "" {
		right = typeStyle.Render(m.cfg.Version)
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + right
}
