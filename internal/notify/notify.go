// Package notify posts best-effort operator notifications about automation
// activity to chat webhooks. Delivery failures are logged, never returned;
// notifications must not disturb the reply pipeline.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/bwmarrin/discordgo"
	"github.com/slack-go/slack"

	"github.com/acornrpa/acorn/internal/config"
)

// slackPoster posts one Slack webhook message. Abstracted for test mocks.
type slackPoster func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// discordSession abstracts the discordgo webhook call we use.
type discordSession interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier fans a notification out to every configured endpoint. A zero
// configuration produces a notifier that silently does nothing.
type Notifier struct {
	slackURL     string
	webhookID    string
	webhookToken string
	postSlack    slackPoster
	discord      discordSession
	out          io.Writer
}

// NotifierOpts holds parameters for creating a Notifier.
type NotifierOpts struct {
	Config config.NotifyConfig
	Out    io.Writer // defaults to os.Stdout
}

// New creates a Notifier from the notify configuration.
func New(opts NotifierOpts) (*Notifier, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	n := &Notifier{
		slackURL:     opts.Config.SlackWebhookURL,
		webhookID:    opts.Config.DiscordWebhookID,
		webhookToken: opts.Config.DiscordWebhookToken,
		postSlack:    slack.PostWebhookContext,
		out:          out,
	}
	if n.webhookID != "" {
		// Webhook execution needs no bot token; the webhook credentials
		// are in the URL parameters.
		sess, err := discordgo.New("")
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		n.discord = sess
	}
	return n, nil
}

// Enabled reports whether any endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n.slackURL != "" || n.webhookID != ""
}

// ReplySent reports a successfully dispatched auto-reply.
func (n *Notifier) ReplySent(ctx context.Context, sender, message, reply, ruleName string) {
	n.post(ctx, fmt.Sprintf("auto-replied to %s (rule %q)\n> %s\n%s", sender, ruleName, message, reply))
}

// PipelineError reports a failure the operator should know about.
func (n *Notifier) PipelineError(ctx context.Context, detail string) {
	n.post(ctx, "automation error: "+detail)
}

func (n *Notifier) post(ctx context.Context, text string) {
	if n.slackURL != "" {
		if err := n.postSlack(ctx, n.slackURL, &slack.WebhookMessage{Text: text}); err != nil {
			log.Printf("notify: slack webhook: %v", err)
		}
	}
	if n.discord != nil && n.webhookID != "" {
		_, err := n.discord.WebhookExecute(n.webhookID, n.webhookToken, false,
			&discordgo.WebhookParams{Content: text})
		if err != nil {
			log.Printf("notify: discord webhook: %v", err)
		}
	}
}
