package cmd

import (
	"fmt"
	"os"

	"smartsearch/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Long: `Writes the configuration currently in effect (defaults plus any flag
overrides) to the --config path, so it can be edited instead of passing flags
on every invocation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(flagConfig); err == nil {
			return fmt.Errorf("%s already exists", flagConfig)
		}
		if err := config.Save(flagConfig, cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", flagConfig)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
