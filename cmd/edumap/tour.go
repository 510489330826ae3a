package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/edumap/pkg/tour"
)

func newTourCmd(a *app) *cobra.Command {
	var silent bool
	var wpm int
	cmd := &cobra.Command{
		Use:   "tour <graph-id|snapshot.json>",
		Short: "Narrate every concept of a graph in reading order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, err := a.newViewer(false, a.narrator(silent, wpm))
			if err != nil {
				return err
			}
			defer v.close()
			if err := a.show(ctx, v, args[0], ""); err != nil {
				return err
			}
			v.loop.Settle(settleTicks)

			if !v.sess.StartTour() {
				return tour.ErrNoNodes
			}
			if err := v.tour.WaitContext(ctx); err != nil {
				v.sess.StopTour()
				if errors.Is(err, context.Canceled) {
					fmt.Fprintln(a.errOut, subtleStyle.Render("tour stopped"))
					return nil
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&silent, "silent", false, "print the narration instead of speaking it")
	cmd.Flags().IntVar(&wpm, "wpm", 160, "reading pace for --silent")
	return cmd
}

// narrator speaks through the configured command when it is installed and
// prints every line either way.
func (a *app) narrator(silent bool, wpm int) tour.Narrator {
	printer := tour.WriterNarrator{W: a.out, WordsPerMinute: wpm}
	if silent {
		return printer
	}
	speaker := tour.CommandNarrator{Command: a.cfg.Narrator.Command, Args: a.cfg.Narrator.Args}
	if speaker.Command == "" || !speaker.Available() {
		fmt.Fprintln(a.errOut, warnStyle.Render("narrator:"), "text-to-speech command not found, printing instead")
		return printer
	}
	return echoNarrator{w: a.out, next: speaker}
}

type echoNarrator struct {
	w    io.Writer
	next tour.Narrator
}

func (n echoNarrator) Speak(ctx context.Context, text string) error {
	fmt.Fprintln(n.w, text)
	return n.next.Speak(ctx, text)
}
