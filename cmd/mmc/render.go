package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/chazu/multimethods/mm"
	"github.com/mattn/go-isatty"
)

var (
	accentColor = lipgloss.Color("#3B82F6")
	errorColor  = lipgloss.Color("#EF4444")
	mutedColor  = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	sentinelStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// printer writes a finalize report either as styled tables or as plain
// text.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(format string, w io.Writer) (*printer, error) {
	switch format {
	case "table":
		return &printer{w: w, styled: true}, nil
	case "plain":
		return &printer{w: w}, nil
	case "auto":
		return &printer{w: w, styled: isTerminal(w)}, nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) report(rep *mm.Report) {
	p.title(fmt.Sprintf("generation %d, %d hierarchies rebuilt", rep.Generation, rep.Hierarchies))
	for _, tr := range rep.Tables {
		p.printTable(tr)
	}
}

func (p *printer) title(s string) {
	if p.styled {
		s = titleStyle.Render(s)
	}
	fmt.Fprintln(p.w, s)
}

func (p *printer) muted(s string) {
	if p.styled {
		s = mutedStyle.Render(s)
	}
	fmt.Fprintln(p.w, s)
}

func (p *printer) printTable(tr mm.TableReport) {
	state := fmt.Sprintf("%d cells, %d undefined, %d ambiguous",
		len(tr.Cells), tr.Undefined, len(tr.Ambiguities))
	if tr.Dirty {
		state = "not resolved"
	}
	p.title(fmt.Sprintf("\ntable %s (generation %d): %s", tr.Name, tr.Generation, state))
	for _, dup := range tr.Duplicates {
		p.muted("  duplicate: " + dup)
	}
	if len(tr.Dimensions) == 0 {
		return
	}
	for _, d := range tr.Dimensions {
		p.muted(fmt.Sprintf("  param %d: bound %s, slot %d, stride %d, %d groups",
			d.Position, d.Bound, d.Slot, d.Stride, len(d.Groups)))
	}

	if !p.styled {
		for _, c := range tr.Cells {
			fmt.Fprintf(p.w, "  %s -> %s\n", strings.Join(groupLabels(tr, c), " x "), cellLabel(c))
		}
		return
	}

	var headers []string
	for _, d := range tr.Dimensions {
		headers = append(headers, fmt.Sprintf("param %d: %s", d.Position, d.Bound))
	}
	headers = append(headers, "method")
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(accentColor)).
		Headers(headers...)
	sentinel := make(map[int]bool)
	for i, c := range tr.Cells {
		sentinel[i] = c.Method == mm.Undefined.Name() || c.Method == mm.Ambiguous.Name()
		t.Row(append(groupLabels(tr, c), cellLabel(c))...)
	}
	last := len(headers) - 1
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case col == last && sentinel[row]:
			return sentinelStyle
		}
		return cellStyle
	})
	fmt.Fprintln(p.w, t.Render())
}

// groupLabels names the classes of the group a cell covers, per dimension.
func groupLabels(tr mm.TableReport, c mm.CellReport) []string {
	labels := make([]string, len(c.Groups))
	for d, g := range c.Groups {
		labels[d] = strings.Join(tr.Dimensions[d].Groups[g], "|")
	}
	return labels
}

func cellLabel(c mm.CellReport) string {
	if len(c.Candidates) > 0 {
		return c.Method + " {" + strings.Join(c.Candidates, "; ") + "}"
	}
	return c.Method
}
