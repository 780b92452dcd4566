package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voxalytics/voxalytics/pkg/models"
	"github.com/voxalytics/voxalytics/pkg/webchat"
)

var (
	webAddr   string
	webDirect bool
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the WebSocket chat surface",
	RunE:  runWeb,
}

func init() {
	webCmd.Flags().StringVar(&webAddr, "addr", ":8080", "listen address")
	webCmd.Flags().BoolVar(&webDirect, "direct", false, "enable no-tool streaming chat frames")
}

func runWeb(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ag, release, err := buildAgent(ctx)
	if err != nil {
		return err
	}
	defer release()

	var direct models.ChatModel
	if webDirect {
		direct, err = models.NewProvider(ctx, flagProvider, flagModel)
		if err != nil {
			return err
		}
	}

	srv := webchat.NewServer(ag, direct, slog.Default())
	if err := srv.ListenAndServe(ctx, webAddr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
