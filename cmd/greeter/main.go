// Package main provides the greeter command line: greeting generation,
// sincerity checks, the daily batch and the HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/config"
	"github.com/jonathan/greeting-personalizer/internal/logging"
	"github.com/jonathan/greeting-personalizer/internal/observability"
)

var (
	logLevel   string
	logFormat  string
	configPath string
	verbose    bool
)

// Process-wide state prepared by rootCmd before any command runs.
var (
	appEnv     *config.Env
	generation config.Generation
	logger     = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "greeter",
	Short: "Personalized greeting generator",
	Long: `Greeter writes personalized corporate greetings for bank clients and employees.

Text is generated by GigaChat, Gemini or OpenAI and checked for sincerity by an
LLM judge; images are drawn by Kandinsky or GigaChat.

Generation defaults can be loaded from a JSON file using --config. Command-line
flags override config file values.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (defaults to LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or console (defaults to LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a generation defaults JSON file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print human-readable summaries to stderr")
}

// setup loads the environment, the logger and the generation defaults.
func setup(_ *cobra.Command, _ []string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	appEnv = env

	level, format := env.Log.Level, env.Log.Format
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	l, err := logging.New(level, format)
	if err != nil {
		return err
	}
	logger = l

	loaded := config.Generation{}
	if configPath != "" {
		g, err := config.LoadGeneration(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := g.Validate(); err != nil {
			return err
		}
		loaded = *g
		logger.Debug("loaded generation config", zap.String("path", configPath))
	}
	generation = loaded.MergeWithDefaults(config.DefaultGeneration())
	return nil
}

// printer returns the verbose printer, or nil when --verbose is off.
func printer(cmd *cobra.Command) *observability.Printer {
	if !verbose {
		return nil
	}
	return observability.NewPrinter(cmd.ErrOrStderr())
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
