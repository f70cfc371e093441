package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	httptransport "github.com/tierwatch/tierwatch/internal/pkg/transport/http"
	"github.com/tierwatch/tierwatch/internal/config"
)

// sendTimeout is the hard per-send timeout spec.md §5 recommends for every
// outbound HTTP/webhook send.
const sendTimeout = 10 * time.Second

// newWebhookClient builds the *http.Client shared by the Slack, Discord and
// Twitter senders: no retries (a failed send is logged and dropped, never retried,
// per spec.md §4.4), bounded by sendTimeout.
func newWebhookClient() *http.Client {
	return httptransport.NewClient(
		httptransport.WithRetryMax(0),
		httptransport.WithTimeout(sendTimeout),
	).StandardClient()
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrTransportFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrTransportFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: status %d", ErrNon2xxResponse, resp.StatusCode)
	}
	return nil
}

// SlackSender posts to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackSender builds a SlackSender from the configured Slack credentials.
func NewSlackSender(cfg config.SlackConfig) *SlackSender {
	return &SlackSender{webhookURL: cfg.WebhookURL, channel: cfg.Channel, client: newWebhookClient()}
}

func (s *SlackSender) Send(ctx context.Context, message string) error {
	if strings.TrimSpace(s.webhookURL) == "" {
		return fmt.Errorf("%w: slack webhook_url is empty", ErrMisconfigured)
	}

	return postJSON(ctx, s.client, s.webhookURL, map[string]string{
		"channel": s.channel,
		"text":    message,
	})
}

// DiscordSender posts to a Discord incoming webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender builds a DiscordSender from the configured Discord
// credentials.
func NewDiscordSender(cfg config.DiscordConfig) *DiscordSender {
	return &DiscordSender{webhookURL: cfg.WebhookURL, client: newWebhookClient()}
}

func (d *DiscordSender) Send(ctx context.Context, message string) error {
	if strings.TrimSpace(d.webhookURL) == "" {
		return fmt.Errorf("%w: discord webhook_url is empty", ErrMisconfigured)
	}

	return postJSON(ctx, d.client, d.webhookURL, map[string]string{
		"content": message,
	})
}
