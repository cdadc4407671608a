package commands

import (
	"errors"
	"fmt"
	"maps"

	"github.com/spf13/cobra"

	"github.com/haivivi/omnicall/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage omnicall configuration.

Configuration is stored in ~/.omnicall/omnicall/config.yaml.
Multiple contexts can be defined for different accounts or endpoints.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with an endpoint and API key.

Examples:
  omnicall config add-context prod --api-key sk-xxx --base-url wss://host/v1/realtime
  omnicall config add-context prod --api-key sk-xxx --base-url wss://host/v1/realtime --model omni-turbo`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		apiKey, _ := cmd.Flags().GetString("api-key")
		baseURL, _ := cmd.Flags().GetString("base-url")
		model, _ := cmd.Flags().GetString("model")
		voice, _ := cmd.Flags().GetString("voice")
		maxReconnects, _ := cmd.Flags().GetInt("max-reconnects")

		if apiKey == "" {
			return errors.New("api-key is required")
		}
		if baseURL == "" {
			return errors.New("base-url is required")
		}

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddContext(name, &cli.Context{
			APIKey:        apiKey,
			BaseURL:       baseURL,
			Model:         model,
			Voice:         voice,
			MaxReconnects: maxReconnects,
		}); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context '%s'", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
		} else {
			fmt.Println(cfg.CurrentContext)
		}
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Printf("%s%s\t%s\n", marker, name, cfg.Contexts[name].BaseURL)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View full configuration with masked API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		return outputResult(maskedConfig(cfg))
	},
}

// maskedConfig returns a copy of cfg safe to print.
func maskedConfig(cfg *cli.Config) *cli.Config {
	out := &cli.Config{
		CurrentContext: cfg.CurrentContext,
		Contexts:       make(map[string]*cli.Context, len(cfg.Contexts)),
	}
	for name, ctx := range cfg.Contexts {
		c := *ctx
		c.APIKey = cli.MaskAPIKey(c.APIKey)
		c.Extra = maps.Clone(c.Extra)
		out.Contexts[name] = &c
	}
	return out
}

func init() {
	configAddContextCmd.Flags().StringP("api-key", "k", "", "API key (required)")
	configAddContextCmd.Flags().StringP("base-url", "u", "", "realtime WebSocket URL (required)")
	configAddContextCmd.Flags().StringP("model", "m", "", "model query parameter")
	configAddContextCmd.Flags().String("voice", "", "default voice")
	configAddContextCmd.Flags().Int("max-reconnects", 0, "consecutive reconnect attempts before giving up (0 = unlimited)")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
