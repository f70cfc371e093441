package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tierwatch/tierwatch/internal/config"
)

const twitterStatusUpdateURL = "https://api.twitter.com/1.1/statuses/update.json"

// TwitterSender posts a status update signed with OAuth1 HMAC-SHA1.
type TwitterSender struct {
	credentials oauth1Credentials
	client      *http.Client
}

// NewTwitterSender builds a TwitterSender from the configured Twitter/X
// credentials.
func NewTwitterSender(cfg config.TwitterConfig) *TwitterSender {
	return &TwitterSender{
		credentials: oauth1Credentials{
			apiKey:            cfg.APIKey,
			apiSecret:         cfg.APISecret,
			accessToken:       cfg.AccessToken,
			accessTokenSecret: cfg.AccessTokenSecret,
		},
		client: newWebhookClient(),
	}
}

func (s *TwitterSender) Send(ctx context.Context, message string) error {
	if strings.TrimSpace(s.credentials.apiKey) == "" ||
		strings.TrimSpace(s.credentials.apiSecret) == "" ||
		strings.TrimSpace(s.credentials.accessToken) == "" ||
		strings.TrimSpace(s.credentials.accessTokenSecret) == "" {
		return fmt.Errorf("%w: twitter credentials are empty", ErrMisconfigured)
	}

	params := url.Values{"status": {message}}

	authHeader, err := s.credentials.sign(http.MethodPost, twitterStatusUpdateURL, params)
	if err != nil {
		return fmt.Errorf("%w: signing request: %w", ErrTransportFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, twitterStatusUpdateURL, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrTransportFailure, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", authHeader)

	resp, err := s.client.Do(req)
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
