// Package telegramep forwards notification text to a Telegram chat.
package telegramep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"golang.org/x/time/rate"

	"passiton/pkg/config"
	"passiton/pkg/endpoints"
	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

// Telegram flood control allows roughly one message per second per chat.
const (
	defaultMessagesPerSecond = 1.0
	defaultBurst             = 3
	apiTimeout               = 10 * time.Second
)

type Config struct {
	BotToken          string  `json:"bot_token"`
	ChatID            int64   `json:"chat_id"`
	MessagesPerSecond float64 `json:"messages_per_second,omitempty"`
}

// sender is the slice of the telebot API the endpoint uses. Tests substitute
// a fake; production wires *tele.Bot.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type TelegramEndpoint struct {
	bot     sender
	chat    tele.ChatID
	limiter *rate.Limiter
	log     logx.Logger
}

// Factory adapts New to the registry contract.
func Factory(rec config.EndpointRecord, log logx.Logger) (endpoints.Endpoint, error) {
	var cfg Config
	if err := rec.Decode(&cfg); err != nil {
		return nil, err
	}
	return New(cfg, log)
}

func New(cfg Config, log logx.Logger) (*TelegramEndpoint, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("telegram endpoint: bot_token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram endpoint: chat_id is required")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.BotToken,
		Offline: true, // send-only; skip getMe and never poll
	})
	if err != nil {
		return nil, fmt.Errorf("telegram endpoint: %w", err)
	}
	return newWithSender(cfg, bot, log), nil
}

func newWithSender(cfg Config, bot sender, log logx.Logger) *TelegramEndpoint {
	mps := cfg.MessagesPerSecond
	if mps <= 0 {
		mps = defaultMessagesPerSecond
	}
	return &TelegramEndpoint{
		bot:     bot,
		chat:    tele.ChatID(cfg.ChatID),
		limiter: rate.NewLimiter(rate.Limit(mps), defaultBurst),
		log:     log.With(logx.String("endpoint", "telegram"), logx.Int64("chat_id", cfg.ChatID)),
	}
}

func (e *TelegramEndpoint) Name() string { return "telegram" }

func (e *TelegramEndpoint) Deliver(ctx context.Context, n notifications.Notification) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := e.bot.Send(e.chat, n.Message.Text)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram endpoint: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *TelegramEndpoint) Close(ctx context.Context) error { return nil }
