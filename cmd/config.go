package cmd

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `config prints the fully resolved configuration: built-in
defaults merged with --config's YAML file, if any. The Anthropic API
key is never printed, since it is resolved from an environment
variable rather than the config file.`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	source := "built-in defaults"
	if configPath != "" {
		source = configPath
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("rendering configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", source)
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	if cfg.AnthropicAPIKey != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "# anthropic_api_key: set (from STEPRUNNER_ANTHROPIC_API_KEY)")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "# anthropic_api_key: not set (summarize step falls back to rule_based)")
	}
	return nil
}
