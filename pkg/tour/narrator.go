package tour

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// Narrator speaks text. Speak blocks until the utterance ends or ctx is
// done, in which case speech must stop at once.
type Narrator interface {
	Speak(ctx context.Context, text string) error
}

// NarratorFunc adapts a function to Narrator.
type NarratorFunc func(ctx context.Context, text string) error

func (f NarratorFunc) Speak(ctx context.Context, text string) error { return f(ctx, text) }

// NopNarrator finishes every utterance immediately.
type NopNarrator struct{}

func (NopNarrator) Speak(ctx context.Context, _ string) error { return ctx.Err() }

// CommandNarrator speaks through an external text-to-speech program such
// as espeak or say, passing the text as the last argument. Cancelling ctx
// kills the process.
type CommandNarrator struct {
	Command string
	Args    []string
}

// DefaultCommandNarrator uses espeak with a Spanish voice.
func DefaultCommandNarrator() CommandNarrator {
	return CommandNarrator{Command: "espeak", Args: []string{"-v", "es"}}
}

// Available reports whether the command can be found on PATH.
func (n CommandNarrator) Available() bool {
	_, err := exec.LookPath(n.Command)
	return err == nil
}

func (n CommandNarrator) Speak(ctx context.Context, text string) error {
	args := append(append([]string(nil), n.Args...), text)
	cmd := exec.CommandContext(ctx, n.Command, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("narrate with %s: %w", n.Command, err)
	}
	return nil
}

// WriterNarrator prints each utterance and then waits as long as reading
// it aloud would take at WordsPerMinute (default 160).
type WriterNarrator struct {
	W              io.Writer
	WordsPerMinute int
}

func (n WriterNarrator) Speak(ctx context.Context, text string) error {
	if _, err := fmt.Fprintln(n.W, text); err != nil {
		return err
	}
	wpm := n.WordsPerMinute
	if wpm <= 0 {
		wpm = 160
	}
	d := time.Duration(wordCount(text)) * time.Minute / time.Duration(wpm)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func wordCount(s string) int {
	n, in := 0, false
	for _, r := range s {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && !in {
			n++
		}
		in = !space
	}
	return n
}
