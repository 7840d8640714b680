package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/hostfunc"
	"github.com/wippyai/js-runtime/rooting"
	"github.com/wippyai/js-runtime/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type entry struct {
	source string
	err    error
}

type replModel struct {
	err      error
	filename string

	backend *engine.WazeroBackend
	table   *hostfunc.Table
	rt      *runtime.Runtime
	global  *rooting.Root[jsruntime.ObjectRef]

	input   textinput.Model
	history []entry
	line    uint32
}

type loadedMsg struct {
	err     error
	backend *engine.WazeroBackend
	table   *hostfunc.Table
	rt      *runtime.Runtime
	global  *rooting.Root[jsruntime.ObjectRef]
}

type evalResultMsg struct {
	source string
	err    error
}

func newReplModel(filename string) *replModel {
	ti := textinput.New()
	ti.Prompt = "js> "
	ti.PromptStyle = promptStyle
	ti.Width = 60
	ti.Focus()

	return &replModel{filename: filename, input: ti, line: 1}
}

func (m *replModel) Init() tea.Cmd {
	return m.loadEngine
}

func (m *replModel) loadEngine() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	table := hostfunc.NewTable()
	backend, err := engine.LoadEngine(ctx, data, engine.WithHostInvoker(table.Invoker()))
	if err != nil {
		table.Close()
		return loadedMsg{err: err}
	}

	rt, err := runtime.New(backend)
	if err != nil {
		backend.Close(ctx)
		table.Close()
		return loadedMsg{err: err}
	}

	global, err := rt.NewGlobal()
	if err != nil {
		rt.Close()
		backend.Close(ctx)
		table.Close()
		return loadedMsg{err: err}
	}

	return loadedMsg{backend: backend, table: table, rt: rt, global: global}
}

func (m *replModel) shutdown() {
	if m.global != nil {
		m.global.Release()
	}
	if m.rt != nil {
		m.rt.Close()
	}
	if m.backend != nil {
		m.backend.Close(context.Background())
	}
	if m.table != nil {
		m.table.Close()
	}
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			m.shutdown()
			return m, tea.Quit

		case "enter":
			src := strings.TrimSpace(m.input.Value())
			if src == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m, m.evaluate(src)
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.backend = msg.backend
		m.table = msg.table
		m.rt = msg.rt
		m.global = msg.global

	case evalResultMsg:
		m.history = append(m.history, entry{source: msg.source, err: msg.err})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *replModel) evaluate(src string) tea.Cmd {
	line := m.line
	m.line++
	return func() tea.Msg {
		err := m.rt.Evaluate(m.global.Handle(), src, "repl.js", line)
		return evalResultMsg{source: src, err: err}
	}
}

func (m *replModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}
	if m.rt == nil {
		return "Loading engine..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("JS Runner"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	for _, e := range m.history {
		b.WriteString(promptStyle.Render("js> "))
		b.WriteString(e.source)
		b.WriteString("\n")
		if e.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("  %v", e.err)))
		} else {
			b.WriteString(okStyle.Render("  ok"))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter evaluate • ctrl+c quit"))

	return b.String()
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newReplModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
