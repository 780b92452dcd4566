// Package cmd implements the voxalytics CLI using cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	flagProvider      string
	flagModel         string
	flagTemperature   float32
	flagMaxTokens     int
	flagMaxIterations int
	flagStepLimit     int
	flagEnvFile       string
	flagVerbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "voxalytics",
	Short: "voxalytics — conversational analytics for the game data warehouse",
	Long: `voxalytics answers natural-language questions about game data by
driving a chat model against the warehouse's SQL tools.`,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		if flagEnvFile != "" {
			if err := godotenv.Load(flagEnvFile); err != nil {
				return fmt.Errorf("loading %s: %w", flagEnvFile, err)
			}
		} else {
			_ = godotenv.Load()
		}

		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagProvider, "provider", "", "model provider (openai, anthropic, gemini, ollama)")
	pf.StringVar(&flagModel, "model", "", "model name (defaults per provider)")
	pf.Float32Var(&flagTemperature, "temperature", 0, "sampling temperature (default 0.3)")
	pf.IntVar(&flagMaxTokens, "max-tokens", 0, "max output tokens (default 4096)")
	pf.IntVar(&flagMaxIterations, "max-iterations", 0, "max tool rounds per query (default 20)")
	pf.IntVar(&flagStepLimit, "step-limit", 0, "hard step ceiling per query (default 50)")
	pf.StringVar(&flagEnvFile, "env-file", "", "env file to load (default .env if present)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(slackCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(toolsCmd)
}
