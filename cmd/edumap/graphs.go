package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/edumap/pkg/api"
	"github.com/vanderheijden86/edumap/pkg/config"
	"github.com/vanderheijden86/edumap/pkg/session"
)

// offline reports whether err means the backend could not be reached, as
// opposed to the backend answering with an error.
func offline(err error) bool {
	var apiErr *api.APIError
	return err != nil && !errors.As(err, &apiErr)
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.cfg.UserID == "" {
				return fmt.Errorf("%w: run edumap login first", session.ErrNoUser)
			}
			graphs, err := a.client.History(ctx, a.cfg.UserID)
			if offline(err) && a.cache != nil {
				fmt.Fprintln(a.errOut, warnStyle.Render("Sin conexión con el servidor; grafos en caché local:"))
				graphs, err = a.cache.Graphs(ctx)
			}
			if err != nil {
				return err
			}
			printGraphs(a.out, graphs)
			return nil
		},
	}
}

func newVersionsCmd(a *app) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "versions <graph-id>",
		Short: "List stored versions of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if local {
				if a.cache == nil {
					return errors.New("snapshot cache is disabled")
				}
				vs, err := a.cache.Versions(ctx, args[0])
				if err != nil {
					return err
				}
				printVersions(a.out, vs)
				return nil
			}
			vs, err := a.client.Versions(ctx, args[0])
			if err != nil {
				return err
			}
			printVersions(a.out, vs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "list versions held in the local cache")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <graph-id> <version-id>",
		Short: "Roll a graph back to a stored version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(cmd, args[0], func(v *viewer) error {
				return v.sess.RestoreVersion(cmd.Context(), args[1])
			})
		},
	}
}

func newDeleteGraphCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-graph <graph-id>",
		Short: "Delete a graph on the backend and from the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if a.cfg.UserID == "" {
				return session.ErrNoUser
			}
			if !yes {
				ok, err := confirm("¿Eliminar el grafo " + args[0] + "? No se puede deshacer.")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, subtleStyle.Render("cancelled"))
					return nil
				}
			}
			if err := a.client.DeleteGraph(ctx, args[0], a.cfg.UserID); err != nil {
				return err
			}
			if a.cache != nil {
				if err := a.cache.Delete(ctx, args[0]); err != nil {
					fmt.Fprintln(a.errOut, warnStyle.Render("cache:"), err)
				}
			}
			fmt.Fprintln(a.out, okStyle.Render("✓"), "deleted", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <graph-id> <title>",
		Short: "Change a graph's title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.UserID == "" {
				return session.ErrNoUser
			}
			if err := a.client.UpdateTitle(cmd.Context(), args[0], args[1], a.cfg.UserID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("✓"), args[0], "→", args[1])
			return nil
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login [user-id]",
		Short: "Register a user with the backend and remember it in the config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			want := ""
			if len(args) == 1 {
				want = args[0]
			}
			id, err := a.client.CreateUser(cmd.Context(), want)
			if err != nil {
				return err
			}
			if id == "" {
				id = want
			}
			if id == "" {
				return errors.New("backend returned no user id")
			}
			if a.configPath == "" {
				return errors.New("cannot determine config path")
			}
			// Persist only the file's own settings, not env or flag overrides.
			cfg, err := config.LoadFrom(a.configPath)
			if err != nil {
				return err
			}
			cfg.UserID = id
			if err := config.SaveTo(cfg, a.configPath); err != nil {
				return err
			}
			a.cfg.UserID = id
			fmt.Fprintln(a.out, okStyle.Render("✓"), "user", id, subtleStyle.Render("saved to "+a.configPath))
			return nil
		},
	}
}
