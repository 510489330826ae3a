package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
)

// newForm creates a form that falls back to accessible line prompts when
// stdin is not a terminal.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal(os.Stdin) {
		form = form.WithAccessible(true)
	}
	return form
}

// promptText asks for the text a new graph is built from.
func promptText() (string, error) {
	var text string
	form := newForm(huh.NewGroup(
		huh.NewText().
			Title("Texto").
			Description("Apuntes, un artículo o un tema: se convertirá en un mapa de conceptos").
			CharLimit(20000).
			Value(&text),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// confirm asks a yes/no question, defaulting to no.
func confirm(question string) (bool, error) {
	ok := false
	form := newForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Value(&ok).
			Affirmative("Sí").
			Negative("No"),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// renderMarkdown formats md for w when it is a terminal; otherwise, or if
// rendering fails, md is returned unchanged.
func renderMarkdown(w io.Writer, md string) string {
	f, ok := w.(*os.File)
	if !ok || !isTerminal(f) || md == "" {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(terminalWidth(w, 80), 100)),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
