package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voxalytics/voxalytics/pkg/agent"
)

var askShowSteps bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowSteps, "steps", false, "print the tool calls made while answering")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ag, release, err := buildAgent(ctx)
	if err != nil {
		return err
	}
	defer release()

	result, err := ag.ProcessQuery(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printResult(result, askShowSteps)
	return nil
}

func printResult(result *agent.Result, showSteps bool) {
	if showSteps && len(result.ToolRecords) > 0 {
		fmt.Printf("Analysis steps (%d queries):\n", result.ToolCount)
		for i, rec := range result.ToolRecords {
			fmt.Printf("  %d. %s\n", i+1, rec.Name)
		}
		fmt.Println()
	}
	fmt.Println(result.Answer)
	if result.Warning != "" {
		fmt.Fprintf(os.Stderr, "warning: %s\n", result.Warning)
	}
}
