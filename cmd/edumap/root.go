package main

import (
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/edumap/pkg/version"
)

type rootOptions struct {
	configPath  string
	backendURL  string
	userID      string
	theme       string
	debug       bool
	noCache     bool
	metricsAddr string
}

func newRootCmd(a *app) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "edumap",
		Short: "Knowledge-graph viewer for the edumap backend",
		Long: titleStyle.Render("edumap") + " renders, narrates and edits concept graphs\n" +
			subtleStyle.Render("Graphs are read from the backend by id or from a snapshot JSON file."),
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context(), opts)
		},
	}
	cmd.SetVersionTemplate("edumap {{ .Version }}\n")
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/edumap/config.yaml)")
	flags.StringVar(&opts.backendURL, "backend", "", "backend base URL")
	flags.StringVar(&opts.userID, "user", "", "user id for edits")
	flags.StringVar(&opts.theme, "theme", "", "color theme: dark or light")
	flags.BoolVar(&opts.debug, "debug", false, "verbose logging (same as EDUMAP_DEBUG=1)")
	flags.BoolVar(&opts.noCache, "no-cache", false, "do not read or write the local snapshot cache")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")

	cmd.AddCommand(
		newOpenCmd(a),
		newRenderCmd(a),
		newTourCmd(a),
		newAnalyzeCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
		newVersionsCmd(a),
		newRestoreCmd(a),
		newCreateCmd(a),
		newAddCmd(a),
		newRefineCmd(a),
		newExpandCmd(a),
		newCommentCmd(a),
		newDeleteNodeCmd(a),
		newDeleteGraphCmd(a),
		newRenameCmd(a),
		newLoginCmd(a),
	)
	return cmd
}
