package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/tierwatch/tierwatch/internal/config"
)

// TelegramSender posts to a Telegram chat via a bot token.
type TelegramSender struct {
	botToken string
	chatID   string

	mu  sync.Mutex
	bot *tele.Bot
}

// NewTelegramSender builds a TelegramSender from the configured Telegram
// credentials. The underlying bot is constructed lazily on first Send, so a
// misconfigured sender never attempts a getMe call against an empty token.
func NewTelegramSender(cfg config.TelegramConfig) *TelegramSender {
	return &TelegramSender{botToken: cfg.BotToken, chatID: cfg.ChatID}
}

func (t *TelegramSender) Send(ctx context.Context, message string) error {
	if strings.TrimSpace(t.botToken) == "" || strings.TrimSpace(t.chatID) == "" {
		return fmt.Errorf("%w: telegram bot_token/chat_id is empty", ErrMisconfigured)
	}

	chatID, err := strconv.ParseInt(t.chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid chat_id %q: %w", ErrMisconfigured, t.chatID, err)
	}

	bot, err := t.client()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}

	_, err = bot.Send(&tele.Chat{ID: chatID}, message)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}
	return nil
}

func (t *TelegramSender) client() (*tele.Bot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		return t.bot, nil
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   t.botToken,
		Offline: true,
		Client:  &http.Client{Timeout: sendTimeout},
	})
	if err != nil {
		return nil, err
	}
	t.bot = bot
	return bot, nil
}
