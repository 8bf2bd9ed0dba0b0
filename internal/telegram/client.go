// Package telegram wraps the Telegram Bot API calls the backend makes:
// replying in chats and managing the webhook registration. It also holds
// the helpers that read slash-commands out of inbound messages.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jotacemarin/botnorrea-v2/internal/observability"
)

// ErrNotConfigured is returned by every call when no bot token was given.
var ErrNotConfigured = errors.New("telegram bot token not configured")

// Message is an outbound chat message.
type Message struct {
	ChatID         int64
	Text           string
	ReplyTo        int  // message id to reply to; 0 sends a plain message
	HTML           bool // parse Text as HTML
	ProtectContent bool // disable forwarding and saving
}

// WebhookResult is the outcome of a setWebhook call.
type WebhookResult struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}

// ---- TEST SEAMS ----
var (
	sendMessage = func(ctx context.Context, b *bot.Bot, params *bot.SendMessageParams) (*models.Message, error) {
		return b.SendMessage(ctx, params)
	}
	setWebhook = func(ctx context.Context, b *bot.Bot, params *bot.SetWebhookParams) (bool, error) {
		return b.SetWebhook(ctx, params)
	}
	getWebhookInfo = func(ctx context.Context, b *bot.Bot) (*models.WebhookInfo, error) {
		return b.GetWebhookInfo(ctx)
	}
)

// Client performs Bot API calls with a bounded timeout per call.
type Client struct {
	bot     *bot.Bot
	timeout time.Duration
}

// New builds a Client. apiURL overrides the Bot API server (useful for a
// local Bot API server or tests); timeout bounds every call. An empty token
// yields a Client whose calls fail with ErrNotConfigured.
func New(token, apiURL string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{timeout: timeout}
	if strings.TrimSpace(token) == "" {
		return c, nil
	}

	opts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(timeout, &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}
	if apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/"); apiURL != "" {
		opts = append(opts, bot.WithServerURL(apiURL))
	}
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, err
	}
	c.bot = b
	return c, nil
}

// SendMessage posts m to its chat.
func (c *Client) SendMessage(ctx context.Context, m Message) error {
	if c == nil || c.bot == nil {
		observability.TelegramCallsTotal.WithLabelValues("sendMessage", observability.OutcomeSkipped).Inc()
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &bot.SendMessageParams{
		ChatID:         m.ChatID,
		Text:           m.Text,
		ProtectContent: m.ProtectContent,
	}
	if m.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	if m.ReplyTo != 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: m.ReplyTo}
	}
	_, err := sendMessage(ctx, c.bot, params)
	count("sendMessage", err)
	return err
}

// SetWebhook points the bot's webhook at url.
func (c *Client) SetWebhook(ctx context.Context, url string) (*WebhookResult, error) {
	if c == nil || c.bot == nil {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ok, err := setWebhook(ctx, c.bot, &bot.SetWebhookParams{URL: url})
	count("setWebhook", err)
	if err != nil {
		return nil, err
	}
	return &WebhookResult{OK: ok, URL: url}, nil
}

// WebhookInfo returns the current webhook registration.
func (c *Client) WebhookInfo(ctx context.Context) (*models.WebhookInfo, error) {
	if c == nil || c.bot == nil {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, err := getWebhookInfo(ctx, c.bot)
	count("getWebhookInfo", err)
	return info, err
}

func count(method string, err error) {
	outcome := observability.OutcomeOK
	if err != nil {
		outcome = observability.OutcomeError
	}
	observability.TelegramCallsTotal.WithLabelValues(method, outcome).Inc()
}
