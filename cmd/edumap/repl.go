package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vanderheijden86/edumap/pkg/analysis"
)

const replHelp = `commands:
  nodes                      list concepts
  show <node-id>             open the detail view
  close                      close the detail view
  expand <node-id>           ask the backend to expand a concept
  comment <node-id> <text>   add a comment
  delete <node-id>           delete a concept
  add <text>                 add text to the graph
  refine <feedback>          refine the graph
  create <text>              build a new graph and open it
  open <graph-id> [title]    switch to another graph
  versions                   list stored versions
  restore <version-id>       restore a version
  analyze                    degree centrality
  tour | stop                start or stop the narrated tour
  export [png] [svg]         write images to the export directory
  quit`

var errQuit = errors.New("quit")

// repl reads one command per line from in until EOF, quit or ctx ends.
// Command failures are reported and do not stop the loop.
func (a *app) repl(ctx context.Context, v *viewer, in io.Reader, prompt bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if prompt {
			fmt.Fprint(a.out, titleStyle.Render("edumap› "))
		}
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := a.dispatch(ctx, v, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				a.reportError(v, err)
			}
		}
	}
}

func (a *app) reportError(v *viewer, err error) {
	if n, ok := v.sess.Notice(); ok {
		printNotice(a.errOut, n)
		v.sess.DismissNotice()
		return
	}
	fmt.Fprintln(a.errOut, errorStyle.Render("error:"), err)
}

// splitCommand returns the first word of s and the trimmed remainder.
func splitCommand(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func usage(form string) error { return fmt.Errorf("usage: %s", form) }

func (a *app) dispatch(ctx context.Context, v *viewer, line string) error {
	s := v.sess
	name, rest := splitCommand(line)
	arg, text := splitCommand(rest)

	switch name {
	case "":
		return nil
	case "help", "?":
		fmt.Fprintln(a.out, replHelp)
	case "quit", "exit", "q":
		return errQuit
	case "nodes":
		printNodes(a.out, s.Store().Nodes())
	case "show":
		if arg == "" {
			return usage("show <node-id>")
		}
		n, err := s.OpenDetail(arg)
		if err != nil {
			return err
		}
		printNode(a.out, n)
	case "close":
		s.CloseDetail()
	case "expand":
		if arg == "" {
			return usage("expand <node-id>")
		}
		return s.Expand(ctx, arg)
	case "comment":
		if arg == "" || text == "" {
			return usage("comment <node-id> <text>")
		}
		return s.Comment(ctx, arg, text)
	case "delete":
		if arg == "" {
			return usage("delete <node-id>")
		}
		return s.DeleteNode(ctx, arg)
	case "add":
		return s.AddContent(ctx, rest)
	case "refine":
		return s.Refine(ctx, rest)
	case "create":
		id, err := s.Create(ctx, rest)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, okStyle.Render("✓"), "grafo", id)
	case "open":
		if arg == "" {
			return usage("open <graph-id> [title]")
		}
		if err := s.Open(ctx, arg, text); err != nil {
			return err
		}
		a.reportNotice(s)
		printSummary(a.out, s.Title(), s.Store().Snapshot())
	case "versions":
		vs, err := s.Versions(ctx)
		if err != nil {
			return err
		}
		printVersions(a.out, vs)
	case "restore":
		if arg == "" {
			return usage("restore <version-id>")
		}
		return s.RestoreVersion(ctx, arg)
	case "analyze":
		res, err := s.Analyze(ctx)
		if err != nil {
			return err
		}
		printScores(a.out, "Centralidad de entrada", analysis.Ranked(res.InDegree, 10))
		printScores(a.out, "Centralidad de salida", analysis.Ranked(res.OutDegree, 10))
	case "tour":
		if !s.StartTour() {
			fmt.Fprintln(a.out, subtleStyle.Render("Nada que recorrer o el recorrido ya está en marcha."))
		}
	case "stop":
		s.StopTour()
	case "export":
		formats := strings.Fields(rest)
		if len(formats) == 0 {
			formats = []string{"png"}
		}
		paths, err := a.export(ctx, v, &renderOptions{formats: formats})
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(a.out, okStyle.Render("✓"), p)
		}
	default:
		return fmt.Errorf("unknown command %q (try help)", name)
	}
	return nil
}
