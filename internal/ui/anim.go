package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"stackscope/internal/bytecode"
	"stackscope/internal/trace"
)

var (
	frameBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
	stackCellStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("4")).
			Padding(0, 1)
	abstractCellStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("8")).
				Faint(true).
				Padding(0, 1)
	instrLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	helpStyle      = lipgloss.NewStyle().Faint(true)
)

type keyMap struct {
	Next key.Binding
	Prev key.Binding
	Play key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Next: key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→", "next step")),
	Prev: key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←", "previous step")),
	Play: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

// AnimModel is a Bubble Tea model that steps through a finished trace,
// drawing the current frame and its operand stack as boxes, in the spirit of
// the per-step terminal animation this trace format was made for.
type AnimModel struct {
	prog    *bytecode.Program
	trace   *trace.Trace
	events  []trace.Event
	idx     int
	playing bool
	delay   time.Duration
	width   int
}

// NewAnimModel builds the animation over a finished trace.
func NewAnimModel(p *bytecode.Program, t *trace.Trace, delay time.Duration) AnimModel {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return AnimModel{prog: p, trace: t, events: t.Events(), delay: delay, width: 80}
}

// Init implements tea.Model.
func (m AnimModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m AnimModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		if !m.playing {
			return m, nil
		}
		if m.idx < len(m.events)-1 {
			m.idx++
			return m, m.tick()
		}
		m.playing = false
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			if m.idx < len(m.events)-1 {
				m.idx++
			}
		case key.Matches(msg, keys.Prev):
			if m.idx > 0 {
				m.idx--
			}
		case key.Matches(msg, keys.Play):
			m.playing = !m.playing
			if m.playing {
				return m, m.tick()
			}
		}
	}
	return m, nil
}

func (m AnimModel) tick() tea.Cmd {
	return tea.Tick(m.delay, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// View implements tea.Model.
func (m AnimModel) View() string {
	if len(m.events) == 0 {
		return "empty trace\n"
	}
	ev := m.events[m.idx]

	var sb strings.Builder
	sb.WriteString(m.header(ev))
	sb.WriteByte('\n')
	sb.WriteString(m.instrLine(ev))
	sb.WriteByte('\n')
	sb.WriteString(m.stackBox(ev))
	sb.WriteByte('\n')
	sb.WriteString(helpStyle.Render(fmt.Sprintf(
		"event %d/%d · → next · ← prev · space play · q quit", m.idx+1, len(m.events))))
	sb.WriteByte('\n')
	return sb.String()
}

func (m AnimModel) header(ev trace.Event) string {
	name := frameName(m.trace, ev.FrameID)
	depth := 0
	if f, ok := m.trace.Frame(ev.FrameID); ok {
		depth = f.Depth
	}
	title := fmt.Sprintf("%s  depth=%d  %s", name, depth, ev.Kind)
	return frameBoxStyle.Render(title)
}

func (m AnimModel) instrLine(ev trace.Event) string {
	switch ev.Kind {
	case trace.KindStep:
		line := fmt.Sprintf("%4d  %s", ev.Instr.Offset, ev.Instr.Op)
		if arg := ev.Instr.ArgString(m.prog); arg != "" {
			line += " " + arg
		}
		if ev.Detail != "" {
			line += "  " + helpStyle.Render("("+ev.Detail+")")
		}
		return instrLineStyle.Render(line)
	case trace.KindExceptionUnwind:
		return instrLineStyle.Render("unwinding: " + ev.Detail)
	default:
		return instrLineStyle.Render(ev.Kind.String())
	}
}

// stackBox draws the operand stack top-first, one bordered cell per entry.
func (m AnimModel) stackBox(ev trace.Event) string {
	if len(ev.Stack) == 0 {
		return helpStyle.Render("  (stack empty)")
	}
	cellWidth := 0
	for _, v := range ev.Stack {
		if n := runewidth.StringWidth(v.Repr); n > cellWidth {
			cellWidth = n
		}
	}
	if limit := m.width - 8; limit > 0 && cellWidth > limit {
		cellWidth = limit
	}
	cells := make([]string, 0, len(ev.Stack))
	for i := len(ev.Stack) - 1; i >= 0; i-- {
		v := ev.Stack[i]
		repr := v.Repr
		if runewidth.StringWidth(repr) > cellWidth {
			repr = runewidth.Truncate(repr, cellWidth, "…")
		}
		repr = repr + strings.Repeat(" ", cellWidth-runewidth.StringWidth(repr))
		style := stackCellStyle
		if v.Abstract {
			style = abstractCellStyle
		}
		cells = append(cells, style.Render(repr))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cells...)
}
