package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPresetsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage saved system contexts",
	}

	withApp := func(run func(cmd *cobra.Command, app *App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config(false)
			if err != nil {
				return err
			}
			app, err := NewPresetApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return run(cmd, app, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved system contexts, newest first",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, app *App, _ []string) error {
				list, err := app.Presets.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tCREATED")
				for _, p := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Title, p.CreatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			}),
		},
		&cobra.Command{
			Use:   "create <title> <content...>",
			Short: "Save a system context",
			Args:  cobra.MinimumNArgs(2),
			RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
				p, err := app.Presets.Create(cmd.Context(), args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rename <id> <title>",
			Short: "Rename a saved system context",
			Args:  cobra.MinimumNArgs(2),
			RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
				_, err := app.Presets.UpdateTitle(cmd.Context(), args[0], strings.Join(args[1:], " "))
				return err
			}),
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a saved system context",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
				return app.Presets.Delete(cmd.Context(), args[0])
			}),
		},
	)
	return cmd
}
