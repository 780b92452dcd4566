package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voxalytics/voxalytics/pkg/tools"
	"github.com/voxalytics/voxalytics/pkg/warehouse"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools exposed by the warehouse server",
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := warehouseConfig()
	if err != nil {
		return err
	}

	client, err := warehouse.Dial(ctx, server)
	if err != nil {
		return err
	}
	defer client.Close()

	defs, err := client.ListTools(ctx)
	if err != nil {
		return err
	}

	for _, def := range defs {
		desc := tools.DescriptorFromDefinition(def)
		fmt.Printf("%s\n  %s\n", desc.Name, desc.Description)
		for _, p := range desc.Parameters {
			req := ""
			if p.Required {
				req = " (required)"
			}
			fmt.Printf("  - %s: %s%s\n", p.Name, p.Kind, req)
		}
	}
	return nil
}
