package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/edumap/pkg/model"
	"github.com/vanderheijden86/edumap/pkg/session"
)

func newOpenCmd(a *app) *cobra.Command {
	var title string
	var silent bool
	cmd := &cobra.Command{
		Use:   "open <graph-id|snapshot.json>",
		Short: "Open a graph, follow live updates and edit it interactively",
		Long: "Opens a graph and keeps it in sync with the backend's push channel.\n" +
			"Commands are read from stdin, one per line; type help for the list.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			v, err := a.newViewer(true, a.narrator(silent, 160))
			if err != nil {
				return err
			}
			defer v.close()

			if err := a.show(ctx, v, args[0], title); err != nil {
				return err
			}
			printSummary(a.out, v.sess.Title(), v.sess.Store().Snapshot())

			unsubscribe := v.sess.Store().Subscribe(func(snap model.Snapshot, version uint64) {
				if snap.IsEmpty() {
					return
				}
				fmt.Fprintln(a.out, subtleStyle.Render(
					fmt.Sprintf("· v%d: %d nodos, %d relaciones", version, len(snap.Nodes), len(snap.Edges))))
			})
			defer unsubscribe()
			v.sess.OnDetail(func(ev session.DetailEvent) {
				if ev.Closed {
					fmt.Fprintln(a.out, warnStyle.Render("El concepto "+ev.NodeID+" ya no existe; detalle cerrado."))
					return
				}
				printNode(a.out, ev.Node)
			})

			go func() { _ = v.loop.Run(ctx) }()
			return a.repl(ctx, v, os.Stdin, isTerminal(os.Stdin))
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "graph title shown and used for exports")
	cmd.Flags().BoolVar(&silent, "silent", false, "print tour narration instead of speaking it")
	return cmd
}
