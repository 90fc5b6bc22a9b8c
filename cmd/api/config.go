package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mandalnilabja/chatrelay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print a commented TOML config file",
	Long: `Print a commented TOML config file. Save it and pass it with --config
or RELAY_CONFIG:

  relay config example > relay.toml`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), config.ExampleFile)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configExampleCmd)
}
