package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/edumap/pkg/model"
	"github.com/vanderheijden86/edumap/pkg/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	opts := &renderOptions{}
	var poll bool
	cmd := &cobra.Command{
		Use:   "watch <snapshot.json>",
		Short: "Re-render a snapshot file whenever it or the config changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			v, err := a.newViewer(false, nil)
			if err != nil {
				return err
			}
			defer v.close()

			a.renderFile(ctx, v, path, opts)

			onError := func(err error) {
				fmt.Fprintln(a.errOut, warnStyle.Render("watch:"), err)
			}
			w, err := watcher.New(path, watcher.WithForcePoll(poll), watcher.WithOnError(onError))
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			var configChanged <-chan struct{}
			if a.configPath != "" {
				cw, err := watcher.New(a.configPath, watcher.WithForcePoll(poll), watcher.WithOnError(onError))
				if err == nil && cw.Start(ctx) == nil {
					defer cw.Stop()
					configChanged = cw.Changed()
				}
			}

			mode := "fsnotify"
			if w.IsPolling() {
				mode = fmt.Sprintf("polling every %s", w.PollInterval())
			}
			fmt.Fprintln(a.errOut, subtleStyle.Render("watching "+w.Path()+" ("+mode+"), Ctrl-C to stop"))

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-w.Changed():
					a.renderFile(ctx, v, path, opts)
				case <-configChanged:
					if err := a.reloadConfig(v); err != nil {
						fmt.Fprintln(a.errOut, warnStyle.Render("config:"), err)
						continue
					}
					fmt.Fprintln(a.errOut, subtleStyle.Render("config reloaded"))
					a.renderFile(ctx, v, path, opts)
				}
			}
		},
	}
	cmd.Flags().StringSliceVarP(&opts.formats, "format", "f", []string{"png"}, "output formats: png, svg")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory (default from config, else current dir)")
	cmd.Flags().StringVar(&opts.title, "title", "", "graph title, used for the file name")
	cmd.Flags().BoolVar(&poll, "poll", false, "poll instead of using filesystem events")
	return cmd
}

// renderFile loads path into v and exports it, reporting problems instead
// of failing so the watch keeps running.
func (a *app) renderFile(ctx context.Context, v *viewer, path string, opts *renderOptions) {
	snap, err := model.ReadSnapshotFile(path)
	if err != nil {
		fmt.Fprintln(a.errOut, warnStyle.Render("skip:"), err)
		return
	}
	title := opts.title
	if title == "" {
		title = fileGraphID(path)
	}
	if err := v.sess.Load(fileGraphID(path), title, snap); err != nil {
		fmt.Fprintln(a.errOut, warnStyle.Render("skip:"), err)
		return
	}
	paths, err := a.export(ctx, v, opts)
	if err != nil {
		fmt.Fprintln(a.errOut, warnStyle.Render("export:"), err)
		return
	}
	for _, p := range paths {
		fmt.Fprintln(a.out, okStyle.Render("✓"), p)
	}
}

// reloadConfig rereads the config file and applies the theme and export
// directory to the running viewer.
func (a *app) reloadConfig(v *viewer) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	if err := a.opts.apply(&cfg); err != nil {
		return err
	}
	a.cfg.Theme = cfg.Theme
	a.cfg.Export.Dir = cfg.Export.Dir
	v.loop.SetTheme(cfg.ResolvedTheme())
	return nil
}
