package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// withGraph opens graphID, runs fn and prints the resulting graph. Backend
// notices are printed before an error is returned.
func (a *app) withGraph(cmd *cobra.Command, graphID string, fn func(v *viewer) error) error {
	v, err := a.newViewer(false, nil)
	if err != nil {
		return err
	}
	defer v.close()
	if err := a.show(cmd.Context(), v, graphID, ""); err != nil {
		return err
	}
	if err := fn(v); err != nil {
		a.reportNotice(v.sess)
		return err
	}
	printSummary(a.out, v.sess.Title(), v.sess.Store().Snapshot())
	return nil
}

// readText joins args, or reads stdin when the only argument is "-".
func readText(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create [text...|-]",
		Short: "Build a new graph from text",
		Long:  "Builds a new graph from the arguments, from stdin with -, or from a prompt when run without arguments on a terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			var err error
			switch {
			case len(args) > 0:
				text, err = readText(os.Stdin, args)
			case isTerminal(os.Stdin):
				text, err = promptText()
			default:
				text, err = readText(os.Stdin, []string{"-"})
			}
			if err != nil {
				return err
			}
			v, err := a.newViewer(false, nil)
			if err != nil {
				return err
			}
			defer v.close()
			id, err := v.sess.Create(cmd.Context(), text)
			if err != nil {
				a.reportNotice(v.sess)
				return err
			}
			printSummary(a.out, v.sess.Title(), v.sess.Store().Snapshot())
			fmt.Fprintln(a.out, okStyle.Render("✓"), "grafo", id)
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <graph-id> <text...|->",
		Short: "Extend a graph with more text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(os.Stdin, args[1:])
			if err != nil {
				return err
			}
			return a.withGraph(cmd, args[0], func(v *viewer) error {
				return v.sess.AddContent(cmd.Context(), text)
			})
		},
	}
}

func newRefineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refine <graph-id> <feedback...|->",
		Short: "Ask the backend to rework a graph from feedback",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(os.Stdin, args[1:])
			if err != nil {
				return err
			}
			return a.withGraph(cmd, args[0], func(v *viewer) error {
				return v.sess.Refine(cmd.Context(), text)
			})
		},
	}
}

func newExpandCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "expand <graph-id> <node-id>",
		Short: "Grow the graph around one concept",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(cmd, args[0], func(v *viewer) error {
				return v.sess.Expand(cmd.Context(), args[1])
			})
		},
	}
}

func newCommentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <graph-id> <node-id> <text...>",
		Short: "Comment on a concept",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(os.Stdin, args[2:])
			if err != nil {
				return err
			}
			return a.withGraph(cmd, args[0], func(v *viewer) error {
				if err := v.sess.Comment(cmd.Context(), args[1], text); err != nil {
					return err
				}
				if n, ok := v.sess.Store().FindNode(args[1]); ok {
					printNode(a.out, n)
				}
				return nil
			})
		},
	}
}

func newDeleteNodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-node <graph-id> <node-id>",
		Short: "Remove a concept and its relations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(cmd, args[0], func(v *viewer) error {
				return v.sess.DeleteNode(cmd.Context(), args[1])
			})
		},
	}
}
