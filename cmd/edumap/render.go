package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/edumap/pkg/render"
	"github.com/vanderheijden86/edumap/pkg/session"
)

type renderOptions struct {
	formats []string
	outDir  string
	title   string
	copy    bool
}

func newRenderCmd(a *app) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <graph-id|snapshot.json>",
		Short: "Render a graph to PNG and/or SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.newViewer(false, nil)
			if err != nil {
				return err
			}
			defer v.close()
			if err := a.show(cmd.Context(), v, args[0], opts.title); err != nil {
				return err
			}
			paths, err := a.export(cmd.Context(), v, opts)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(a.out, okStyle.Render("✓"), p)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&opts.formats, "format", "f", []string{session.FormatPNG}, "output formats: png, svg")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory (default from config, else current dir)")
	cmd.Flags().StringVar(&opts.title, "title", "", "graph title, used for the file name")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "copy the PNG as a data: URL to the clipboard")
	return cmd
}

// export settles the layout, writes every requested format and returns the
// written paths.
func (a *app) export(ctx context.Context, v *viewer, opts *renderOptions) ([]string, error) {
	formats := make([]string, 0, len(opts.formats))
	for _, f := range opts.formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != session.FormatPNG && f != session.FormatSVG {
			return nil, fmt.Errorf("unknown format %q", f)
		}
		formats = append(formats, f)
	}

	v.loop.Settle(settleTicks)
	artifacts, err := v.sess.Export(ctx, formats...)
	if err != nil {
		a.reportNotice(v.sess)
		return nil, err
	}

	dir := opts.outDir
	if dir == "" {
		dir = a.cfg.ExportDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	paths := make([]string, 0, len(artifacts))
	for _, art := range artifacts {
		path := filepath.Join(dir, art.Name)
		if err := os.WriteFile(path, art.Data, 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
		if opts.copy && art.Format == session.FormatPNG {
			if err := clipboard.WriteAll(render.DataURL(art.Data)); err != nil {
				fmt.Fprintln(a.errOut, warnStyle.Render("clipboard:"), err)
			}
		}
	}
	return paths, nil
}
