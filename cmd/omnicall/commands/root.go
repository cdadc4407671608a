package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/haivivi/omnicall/pkg/cli"
)

const appName = "omnicall"

var (
	// Global flags
	cfgFile     string
	contextName string
	envFile     string
	outputFile  string
	inputFile   string
	outputJSON  bool
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "omnicall",
	Short: "Realtime voice and video call client",
	Long: `omnicall - A command line client for realtime omni-modal conversations.

It streams microphone audio (and optionally camera frames) to a realtime
WebSocket service, plays the spoken replies and prints the transcripts.

Configuration is stored in ~/.omnicall/omnicall/ and supports multiple
contexts, similar to kubectl's context management. Without a context the
OMNICALL_API_KEY and OMNICALL_BASE_URL environment variables are used.

Examples:
  # Set up a new context
  omnicall config add-context prod --api-key sk-xxx --base-url wss://host/v1/realtime

  # Start a call with the default microphone and player
  omnicall -c prod call

  # Use a call profile and expose metrics
  omnicall call -f call.yaml --metrics-addr :9090
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.omnicall/omnicall/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with OMNICALL_* variables")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "call profile (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Variables already set in the environment take precedence.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", envFile, err)
		}
	}

	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s config: %v\n", appName, err)
	}
}

// getConfig returns the global configuration
func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		return nil, errors.New("configuration not initialized")
	}
	return globalConfig, nil
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		if ctx := cli.EnvContext(); ctx != nil && contextName == "" {
			return ctx, nil
		}
		return nil, err
	}

	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if errors.Is(err, cli.ErrNoContext) {
			return nil, fmt.Errorf("no context specified. Use -c flag, 'omnicall config use-context' or set %s", cli.EnvAPIKey)
		}
		return nil, err
	}
	return ctx, nil
}

// outputResult outputs the result using cli package
func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
	})
}
