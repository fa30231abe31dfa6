package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// reservedLines is the space taken by the header box and the footer.
const reservedLines = 5

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
	footerStyle = lipgloss.NewStyle().Faint(true)
)

var modeTitles = map[StartMode]string{
	ModeAnalyze: "auditscope - Analysis",
	ModeStrip:   "auditscope - Test Removal",
	ModeChanges: "auditscope - Changes",
	ModeView:    "auditscope - Stored Analysis",
}

// TUI implements UI by collecting the plain output and showing it in a
// scrollable pager when it does not fit the terminal.
type TUI struct {
	*SimpleUI

	output  io.Writer
	buffer  bytes.Buffer
	mode    StartMode
	flushed bool
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	t := &TUI{output: output}
	t.SimpleUI = &SimpleUI{out: &t.buffer}

	return t
}

// Start resets the collected output.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	config := StartConfig{}
	for _, option := range options {
		option(&config)
	}

	t.mode = config.mode
	t.buffer.Reset()
	t.flushed = false

	return nil
}

// DisplayProgress writes progress straight to the terminal; it is not kept
// in the pager content.
func (t *TUI) DisplayProgress(ctx context.Context, message string) {
	if err := ctx.Err(); err != nil {
		return
	}

	_, _ = fmt.Fprintln(t.output, message)
}

// Wait shows the collected output, paging it when it is taller than the
// terminal, and returns once the user quits the pager.
func (t *TUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}

	if t.flushed {
		return
	}

	t.flushed = true

	content := t.buffer.String()
	width, height := terminalSize(t.output)

	model := newPagerModel(modeTitles[t.mode], content, width, height)
	if !model.needsPagination() {
		_, _ = fmt.Fprint(t.output, content)
		return
	}

	program := tea.NewProgram(model, tea.WithOutput(t.output), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		_, _ = fmt.Fprint(t.output, content)
	}
}

// Close prints anything not yet shown.
func (t *TUI) Close(_ context.Context) {
	if t.flushed {
		return
	}

	t.flushed = true

	_, _ = fmt.Fprint(t.output, t.buffer.String())
}

func terminalSize(w io.Writer) (int, int) {
	f, ok := w.(*os.File)
	if !ok {
		return 0, 0
	}

	width, height, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0, 0
	}

	return width, height
}

type pagerKeyMap struct {
	Quit   key.Binding
	Top    key.Binding
	Bottom key.Binding
}

func defaultPagerKeyMap() pagerKeyMap {
	return pagerKeyMap{
		Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		Top:    key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom: key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	}
}

// pagerModel is a bubbletea model scrolling a block of text.
type pagerModel struct {
	title    string
	lines    int
	height   int
	keys     pagerKeyMap
	viewport viewport.Model
}

func newPagerModel(title, content string, width, height int) pagerModel {
	vp := viewport.New(width, max(height-reservedLines, 1))
	vp.SetContent(content)

	return pagerModel{
		title:    title,
		lines:    strings.Count(content, "\n") + 1,
		height:   height,
		keys:     defaultPagerKeyMap(),
		viewport: vp,
	}
}

// needsPagination returns true if the content is taller than the terminal.
func (p pagerModel) needsPagination() bool {
	return p.height > 0 && p.lines > p.height-reservedLines
}

func (p pagerModel) Init() tea.Cmd {
	return nil
}

func (p pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.height = msg.Height
		p.viewport.Width = msg.Width
		p.viewport.Height = max(msg.Height-reservedLines, 1)

		return p, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Quit):
			return p, tea.Quit
		case key.Matches(msg, p.keys.Top):
			p.viewport.GotoTop()
			return p, nil
		case key.Matches(msg, p.keys.Bottom):
			p.viewport.GotoBottom()
			return p, nil
		}
	}

	var cmd tea.Cmd

	p.viewport, cmd = p.viewport.Update(msg)

	return p, cmd
}

func (p pagerModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(p.title))
	b.WriteString("\n")
	b.WriteString(p.viewport.View())
	b.WriteString("\n")
	b.WriteString(footerStyle.Render(fmt.Sprintf(
		"%3.f%%  ↑/k up • ↓/j down • d/u half page • g/G top/bottom • q quit",
		p.viewport.ScrollPercent()*100,
	)))

	return b.String()
}
