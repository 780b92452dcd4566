// Package slackbot exposes the analytics agent in Slack via Socket Mode.
// Mentions and direct messages become queries; answers come back with a
// summary of the analysis steps taken.
package slackbot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/voxalytics/voxalytics/pkg/agent"
)

// Config carries the Slack credentials and behaviour knobs.
type Config struct {
	BotToken      string
	AppToken      string
	ReactEmoji    string // reaction added while a query runs, empty disables
	ReplyInThread bool
}

// Bot bridges Slack events to one shared agent.
type Bot struct {
	cfg       Config
	agent     *agent.Agent
	log       *slog.Logger
	webClient *slackgo.Client
	smClient  *socketmode.Client
	botUserID string
}

func New(cfg Config, ag *agent.Agent, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{cfg: cfg, agent: ag, log: logger}
}

// Run connects to Slack and serves events until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	if b.cfg.BotToken == "" || b.cfg.AppToken == "" {
		return fmt.Errorf("slackbot: SLACK_BOT_TOKEN and SLACK_APP_TOKEN are required")
	}

	b.webClient = slackgo.New(b.cfg.BotToken,
		slackgo.OptionAppLevelToken(b.cfg.AppToken))

	if resp, err := b.webClient.AuthTestContext(ctx); err == nil {
		b.botUserID = resp.UserID
		b.log.Info("slack: connected", "bot_user_id", b.botUserID)
	}

	b.smClient = socketmode.New(b.webClient)

	go b.smClient.RunContext(ctx) //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-b.smClient.Events:
			if !ok {
				return nil
			}
			b.handleEvent(ctx, evt)
		}
	}
}

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	if evt.Type != socketmode.EventTypeEventsAPI {
		return
	}
	b.smClient.Ack(*evt.Request)

	cb, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	if cb.InnerEvent.Type != "message" && cb.InnerEvent.Type != "app_mention" {
		return
	}
	b.handleInnerEvent(ctx, cb.InnerEvent)
}

func (b *Bot) handleInnerEvent(ctx context.Context, ev slackevents.EventsAPIInnerEvent) {
	// Inner event data arrives as a raw map; parse manually.
	data, ok := ev.Data.(map[string]interface{})
	if !ok {
		return
	}
	userID, _ := data["user"].(string)
	channel, _ := data["channel"].(string)
	text, _ := data["text"].(string)
	subtype, _ := data["subtype"].(string)
	channelType, _ := data["channel_type"].(string)
	ts, _ := data["ts"].(string)
	threadTS, _ := data["thread_ts"].(string)

	if subtype != "" || userID == "" || channel == "" {
		return
	}
	if userID == b.botUserID {
		return
	}
	// In channels only mentions are answered, and a mention raises both a
	// message and an app_mention event; keep the mention so the query runs
	// once. Direct messages come through as plain message events.
	if ev.Type == "message" && channelType != "im" {
		return
	}

	query := stripMention(text, b.botUserID)
	if strings.TrimSpace(query) == "" {
		return
	}

	if b.cfg.ReplyInThread && threadTS == "" {
		threadTS = ts
	}
	if b.cfg.ReactEmoji != "" && ts != "" {
		_ = b.webClient.AddReaction(b.cfg.ReactEmoji, slackgo.ItemRef{
			Channel:   channel,
			Timestamp: ts,
		})
	}

	result, err := b.agent.ProcessQuery(ctx, query)
	var reply string
	if err != nil {
		b.log.Error("slack: query failed", "error", err)
		reply = "Something went wrong while processing your request. Please try again."
	} else {
		reply = FormatResult(result)
	}

	opts := []slackgo.MsgOption{slackgo.MsgOptionText(reply, false)}
	if threadTS != "" && channelType != "im" {
		opts = append(opts, slackgo.MsgOptionTS(threadTS))
	}
	if _, _, err := b.webClient.PostMessageContext(ctx, channel, opts...); err != nil {
		b.log.Error("slack: post failed", "channel", channel, "error", err)
	}
}

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>\s*`)

func stripMention(text, botUserID string) string {
	if botUserID != "" {
		re := regexp.MustCompile(`<@` + regexp.QuoteMeta(botUserID) + `>\s*`)
		return strings.TrimSpace(re.ReplaceAllString(text, ""))
	}
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}

// FormatResult renders a run for Slack: the analysis steps taken, then the
// answer, then any warning.
func FormatResult(res *agent.Result) string {
	var sb strings.Builder

	if len(res.ToolRecords) > 0 {
		fmt.Fprintf(&sb, "*Analysis Steps (%d queries)*:\n", res.ToolCount)
		for i, rec := range res.ToolRecords {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, rec.Name)
		}
		sb.WriteString("\n*Answer*: ")
	}
	sb.WriteString(res.Answer)

	if res.Warning != "" {
		sb.WriteString("\n\n:warning: ")
		sb.WriteString(res.Warning)
	}
	return sb.String()
}
