// Package ui renders finished traces for the terminal: a per-step table and
// an interactive stack animation. Rendering is glue around the trace value;
// no engine logic lives here.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"stackscope/internal/bytecode"
	"stackscope/internal/trace"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	offsetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	opcodeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	argStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	stackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	noteStyle   = lipgloss.NewStyle().Faint(true)
)

// row is one rendered table line before styling.
type row struct {
	offset string
	opcode string
	arg    string
	stack  string
	note   string
}

// RenderTable writes the per-event table for a trace: offset, opcode,
// operand, and the operand stack after each event. Colors are applied only
// when colorize is set; width math uses display cells so wide runes align.
func RenderTable(w io.Writer, p *bytecode.Program, t *trace.Trace, colorize bool) error {
	rows := make([]row, 0, t.Len())
	for _, ev := range t.Events() {
		rows = append(rows, eventRow(p, t, ev))
	}

	head := row{offset: "OFFSET", opcode: "EVENT", arg: "ARG", stack: "STACK AFTER", note: "NOTE"}
	widths := [5]int{}
	for _, r := range append([]row{head}, rows...) {
		for i, cell := range r.cells() {
			if n := runewidth.StringWidth(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	writeRow := func(r row, styles [5]lipgloss.Style) error {
		var sb strings.Builder
		for i, cell := range r.cells() {
			padded := cell + strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell))
			if colorize {
				padded = styles[i].Render(padded)
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(padded)
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
		return err
	}

	headStyles := [5]lipgloss.Style{headerStyle, headerStyle, headerStyle, headerStyle, headerStyle}
	if err := writeRow(head, headStyles); err != nil {
		return err
	}
	bodyStyles := [5]lipgloss.Style{offsetStyle, opcodeStyle, argStyle, stackStyle, noteStyle}
	for _, r := range rows {
		if err := writeRow(r, bodyStyles); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%d events, stop: %s\n", t.Len(), t.Stop()); err != nil {
		return err
	}
	return nil
}

func (r row) cells() [5]string {
	return [5]string{r.offset, r.opcode, r.arg, r.stack, r.note}
}

func eventRow(p *bytecode.Program, t *trace.Trace, ev trace.Event) row {
	switch ev.Kind {
	case trace.KindStep:
		r := row{
			offset: fmt.Sprintf("%d", ev.Instr.Offset),
			opcode: ev.Instr.Op.String(),
			arg:    ev.Instr.ArgString(p),
			stack:  FormatStack(ev.Stack),
			note:   ev.Detail,
		}
		return r
	case trace.KindFrameEnter:
		return row{opcode: "→ " + frameName(t, ev.FrameID), stack: FormatStack(ev.Stack), note: ev.Detail}
	case trace.KindFrameExit:
		return row{opcode: "← " + frameName(t, ev.FrameID), stack: FormatStack(ev.Stack), note: ev.Detail}
	case trace.KindExceptionUnwind:
		return row{opcode: "✗ " + frameName(t, ev.FrameID), note: ev.Detail}
	default:
		return row{opcode: ev.Kind.String()}
	}
}

func frameName(t *trace.Trace, id uint64) string {
	if f, ok := t.Frame(id); ok {
		return f.QualName
	}
	return fmt.Sprintf("frame %d", id)
}

// FormatStack renders a snapshot bottom-first, the way the stack reads in
// the trace tables.
func FormatStack(s trace.Snapshot) string {
	if len(s) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.Repr)
	}
	sb.WriteByte(']')
	return sb.String()
}
