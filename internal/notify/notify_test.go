package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierwatch/tierwatch/internal/config"
	"github.com/tierwatch/tierwatch/internal/policy"
)

func TestSlackSender(t *testing.T) {
	t.Run("should POST the channel and text as JSON", func(t *testing.T) {
		var received map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		sender := NewSlackSender(config.SlackConfig{WebhookURL: server.URL, Channel: "#alerts"})
		err := sender.Send(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, "#alerts", received["channel"])
		assert.Equal(t, "hello", received["text"])
	})

	t.Run("should fail with ErrNon2xxResponse on a 500", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		sender := NewSlackSender(config.SlackConfig{WebhookURL: server.URL})
		err := sender.Send(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNon2xxResponse)
	})

	t.Run("should fail with ErrMisconfigured when the webhook url is empty", func(t *testing.T) {
		sender := NewSlackSender(config.SlackConfig{})
		err := sender.Send(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMisconfigured)
	})
}

func TestDiscordSender(t *testing.T) {
	t.Run("should POST the content as JSON", func(t *testing.T) {
		var received map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		sender := NewDiscordSender(config.DiscordConfig{WebhookURL: server.URL})
		err := sender.Send(context.Background(), "hello discord")
		require.NoError(t, err)
		assert.Equal(t, "hello discord", received["content"])
	})
}

func TestTwitterSender(t *testing.T) {
	t.Run("should produce a well-formed OAuth1 authorization header", func(t *testing.T) {
		sender := NewTwitterSender(config.TwitterConfig{
			APIKey:            "key",
			APISecret:         "secret",
			AccessToken:       "token",
			AccessTokenSecret: "tokensecret",
		})

		header, err := sender.credentials.sign(http.MethodPost, twitterStatusUpdateURL, nil)
		require.NoError(t, err)
		assert.Contains(t, header, "OAuth oauth_consumer_key=")
		assert.Contains(t, header, "oauth_signature=")
		assert.Contains(t, header, "oauth_signature_method=\"HMAC-SHA1\"")
	})

	t.Run("should fail with ErrMisconfigured when credentials are empty", func(t *testing.T) {
		sender := NewTwitterSender(config.TwitterConfig{})
		err := sender.Send(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMisconfigured)
	})
}

func TestTelegramSender(t *testing.T) {
	t.Run("should fail with ErrMisconfigured when bot_token or chat_id is empty", func(t *testing.T) {
		sender := NewTelegramSender(config.TelegramConfig{})
		err := sender.Send(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMisconfigured)
	})

	t.Run("should fail with ErrMisconfigured when chat_id is not numeric", func(t *testing.T) {
		sender := NewTelegramSender(config.TelegramConfig{BotToken: "abc", ChatID: "not-a-number"})
		err := sender.Send(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMisconfigured)
	})
}

type stubSender struct {
	err error
}

func (s stubSender) Send(ctx context.Context, message string) error {
	return s.err
}

func TestSetDispatch(t *testing.T) {
	t.Run("should isolate a failing destination from succeeding ones", func(t *testing.T) {
		set := &Set{senders: map[config.DestinationId]Sender{
			config.DestinationSlack:    stubSender{err: ErrTransportFailure},
			config.DestinationDiscord:  stubSender{},
			config.DestinationTelegram: stubSender{},
		}}

		notifications := []policy.Notification{
			{Destination: config.DestinationSlack, Message: "msg-slack"},
			{Destination: config.DestinationDiscord, Message: "msg-discord"},
			{Destination: config.DestinationTelegram, Message: "msg-telegram"},
		}

		results := set.Dispatch(context.Background(), notifications)
		require.Len(t, results, 3)

		byDestination := make(map[config.DestinationId]error)
		for _, r := range results {
			byDestination[r.Notification.Destination] = r.Err
		}

		assert.ErrorIs(t, byDestination[config.DestinationSlack], ErrTransportFailure)
		assert.NoError(t, byDestination[config.DestinationDiscord])
		assert.NoError(t, byDestination[config.DestinationTelegram])
	})

	t.Run("should return ErrMisconfigured when no sender is registered for a destination", func(t *testing.T) {
		set := &Set{senders: map[config.DestinationId]Sender{}}

		results := set.Dispatch(context.Background(), []policy.Notification{
			{Destination: config.DestinationTwitter, Message: "msg"},
		})

		require.Len(t, results, 1)
		assert.ErrorIs(t, results[0].Err, ErrMisconfigured)
	})
}
