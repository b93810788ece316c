package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags

	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "deckmerge",
		Short:         "Build a slide deck from product tables and images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx.setupLogging(cmd.ErrOrStderr())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Configuration file path (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&flags.variant, "variant", "", "Preset to start from: bundled, bundled-14 or upload")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "Optional .env file with DECKMERGE_* settings")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log per-slide and per-image detail")

	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newVariantsCommand())

	return rootCmd
}
