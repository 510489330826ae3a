package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/vanderheijden86/edumap/pkg/analysis"
	"github.com/vanderheijden86/edumap/pkg/model"
	"github.com/vanderheijden86/edumap/pkg/session"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f7768e"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7"))
)

const (
	labelColumn = 32
	barWidth    = 20
)

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns w's column count, or fallback when it is not a
// terminal.
func terminalWidth(w io.Writer, fallback int) int {
	f, ok := w.(*os.File)
	if !ok || !isTerminal(f) {
		return fallback
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil || cols <= 0 {
		return fallback
	}
	return cols
}

// cell truncates s to width display columns and pads it to exactly width.
func cell(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func bar(v float64, width int) string {
	v = min(max(v, 0), 1)
	n := int(v*float64(width) + 0.5)
	return strings.Repeat("█", n) + strings.Repeat("·", width-n)
}

func printNotice(w io.Writer, n session.Notice) {
	style := warnStyle
	if n.Kind == session.NoticeError {
		style = errorStyle
	}
	fmt.Fprintf(w, "%s %s\n", style.Render(n.Kind.String()+":"), n.Message)
}

func printSummary(w io.Writer, title string, snap model.Snapshot) {
	if title == "" {
		title = "(sin título)"
	}
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(title),
		subtleStyle.Render(fmt.Sprintf("%d nodos, %d relaciones", len(snap.Nodes), len(snap.Edges))))
	if snap.Summary != "" {
		fmt.Fprintln(w, renderMarkdown(w, snap.Summary))
	}
}

func printNode(w io.Writer, n model.Node) {
	label := n.Label
	if label == "" {
		label = n.ID
	}
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(label), subtleStyle.Render("["+n.ID+", "+n.Type+"]"))
	if n.Description != "" {
		fmt.Fprintln(w, renderMarkdown(w, n.Description))
	}
	for _, c := range n.Comments {
		fmt.Fprintf(w, "  %s %s\n", subtleStyle.Render(c.AuthorID+" "+c.Timestamp+":"), c.Text)
	}
}

func printNodes(w io.Writer, nodes []model.Node) {
	width := terminalWidth(w, 100)
	descWidth := max(width-labelColumn-18, 10)
	for _, n := range nodes {
		fmt.Fprintf(w, "%s %s %s\n",
			cell(n.ID, 16), cell(n.Label, labelColumn), subtleStyle.Render(cell(n.Description, descWidth)))
	}
}

func printScores(w io.Writer, heading string, scores []analysis.Score) {
	fmt.Fprintln(w, headerStyle.Render(heading))
	if len(scores) == 0 {
		fmt.Fprintln(w, subtleStyle.Render("  (vacío)"))
		return
	}
	for _, s := range scores {
		fmt.Fprintf(w, "  %s %s %.3f\n", cell(s.Key, labelColumn), barStyle.Render(bar(s.Value, barWidth)), s.Value)
	}
}

func printGraphs(w io.Writer, graphs []model.GraphSummary) {
	if len(graphs) == 0 {
		fmt.Fprintln(w, subtleStyle.Render("No hay grafos."))
		return
	}
	for _, g := range graphs {
		fmt.Fprintf(w, "%s %s\n", cell(g.ID, 38), g.Title)
	}
}

func printVersions(w io.Writer, versions []model.Version) {
	if len(versions) == 0 {
		fmt.Fprintln(w, subtleStyle.Render("No hay versiones."))
		return
	}
	for _, v := range versions {
		fmt.Fprintf(w, "%s %s %s\n", cell(v.ID, 38), cell(v.CreatedAt, 26),
			subtleStyle.Render(fmt.Sprintf("%d nodos", v.NodeCount)))
	}
}
