package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragkb-chat/core/internal/filter"
)

func newFiltersCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "Print the configured explicit filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config(false)
			if err != nil {
				return err
			}
			configs, err := filter.LoadConfigurations(cfg.Filters.Path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range configs {
				fmt.Fprintf(out, "%s (%s) %s\n", c.Key, c.Type, c.Label)
				if c.Description != "" {
					fmt.Fprintf(out, "    %s\n", c.Description)
				}
				if len(c.Options) > 0 {
					labels := make([]string, 0, len(c.Options))
					for _, o := range c.Options {
						labels = append(labels, fmt.Sprintf("%s=%s", o.Label, o.RawValue()))
					}
					fmt.Fprintf(out, "    options: %s\n", strings.Join(labels, ", "))
				}
			}
			return nil
		},
	}
}
