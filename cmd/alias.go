package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imgapi/internal/format"
)

func init() {
	aliasCmd := &cobra.Command{
		Use:     "aliases",
		Aliases: []string{"alias", "a"},
		Short:   "List URL aliases from the config file",
		Long: `List the URL aliases defined under 'aliases' in the config file.

Aliases allow you to create shortcuts for base URLs, so you can use
'vision/analyze' instead of 'https://vision.example.com/v1/analyze':

  aliases:
    vision: https://vision.example.com/v1`,
		Args: cobra.MaximumNArgs(1),
		Run:  runAliases,
	}
	rootCmd.AddCommand(aliasCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		Run:   runConfig,
	}
	rootCmd.AddCommand(configCmd)
}

func runAliases(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	if len(args) == 1 {
		url, ok := cfg.Aliases[args[0]]
		if !ok {
			format.PrintError(fmt.Sprintf("Alias '%s' not found", args[0]))
			os.Exit(ExitUsageError)
		}
		format.PrintAlias(cmd.OutOrStdout(), args[0], url)
		return
	}

	format.PrintAliasList(cmd.OutOrStdout(), cfg.Aliases)
}

func runConfig(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	data, err := cfg.Marshal()
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to encode config: %v", err))
		os.Exit(ExitConfigError)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
}
