package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voxalytics/voxalytics/pkg/slackbot"
)

var slackReplyInThread bool

var slackCmd = &cobra.Command{
	Use:   "slack",
	Short: "Run the Slack bot (Socket Mode)",
	RunE:  runSlack,
}

func init() {
	slackCmd.Flags().BoolVar(&slackReplyInThread, "thread", true, "reply in a thread on the triggering message")
}

func runSlack(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ag, release, err := buildAgent(ctx)
	if err != nil {
		return err
	}
	defer release()

	bot := slackbot.New(slackbot.Config{
		BotToken:      os.Getenv("SLACK_BOT_TOKEN"),
		AppToken:      os.Getenv("SLACK_APP_TOKEN"),
		ReactEmoji:    "mag",
		ReplyInThread: slackReplyInThread,
	}, ag, nil)

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
