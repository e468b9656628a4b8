// Package cli exposes the knowledge-base chat as a cobra command tree.
package cli

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile string
}

// NewRootCommand builds the kbchat command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "kbchat",
		Short:         "Chat with a knowledge base through retrieval-augmented generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(
		newChatCommand(opts),
		newPresetsCommand(opts),
		newFiltersCommand(opts),
	)
	return root
}

func (o *rootOptions) config(quiet bool) (*AppConfig, error) {
	cfg, err := LoadConfig(o.envFile)
	if err != nil {
		return nil, err
	}
	cfg.InitLogger(quiet)
	return cfg, nil
}
