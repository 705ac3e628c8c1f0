// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dval/internal/config"
)

func newConfigCommand(f *rootFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show and create the configuration",
	}

	var output string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, cfg.Config, func(w io.Writer) {
				if cfg.Path != "" {
					fmt.Fprintln(w, SubtitleStyle.Render("// loaded from "+cfg.Path))
				}
				fmt.Fprint(w, config.GenerateCUE(cfg.Config))
			})
		},
	}
	addOutputFlag(showCmd, &output)

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the CUE schema config files are checked against",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.Schema())
		},
	}

	var dir string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig(dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Config: ")+path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&dir, "dir", "", "target directory (default <user config dir>/dval)")

	configCmd.AddCommand(showCmd, schemaCmd, initCmd)
	return configCmd
}
