package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/partnergate/partnergate/internal/config"
)

// Identity describes the bot account behind a credential, as reported
// by the messaging platform.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
}

// Client is the outbound messaging surface. All operations take the bot
// credential explicitly so one client serves every registered bot.
type Client interface {
	// GetIdentity validates the credential and returns the bot account
	// behind it.
	GetIdentity(ctx context.Context, token string) (Identity, error)
	// SetWebhook binds the platform's update delivery to url.
	SetWebhook(ctx context.Context, token, url string) error
	// DeleteWebhook unbinds update delivery for the credential.
	DeleteWebhook(ctx context.Context, token string) error
	// SendText delivers text to a chat, splitting it into ordered chunks
	// when it exceeds the platform limit. Markup, when set, is attached
	// to the first chunk only.
	SendText(ctx context.Context, token string, chatID int64, text string, markup any) error
	// SendFile delivers a local file as a document with an optional caption.
	SendFile(ctx context.Context, token string, chatID int64, path, caption string) error
	// AnswerCallback acknowledges an inline keyboard callback.
	AnswerCallback(ctx context.Context, token, callbackID, text string) error
	// SetMenuButton points the chat menu button at a web app url.
	SetMenuButton(ctx context.Context, token, text, url string) error
}

// BotClient implements Client over the Telegram Bot API. Bot API
// sessions are created lazily per credential and cached.
type BotClient struct {
	log        *slog.Logger
	httpClient *http.Client
	chunkDelay time.Duration

	// send dispatches one prepared message through a bot session.
	// Swapped out in tests.
	send func(bot *tgbotapi.BotAPI, msg tgbotapi.Chattable) (tgbotapi.Message, error)

	mu   sync.RWMutex
	bots map[string]*tgbotapi.BotAPI
}

func NewBotClient(cfg config.TelegramConfig) *BotClient {
	return &BotClient{
		log:        slog.With(slog.String("service", "telegram")),
		httpClient: &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second},
		chunkDelay: time.Duration(cfg.ChunkDelayMs) * time.Millisecond,
		send: func(bot *tgbotapi.BotAPI, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
			return bot.Send(msg)
		},
		bots: make(map[string]*tgbotapi.BotAPI),
	}
}

func (c *BotClient) bot(token string) (*tgbotapi.BotAPI, error) {
	c.mu.RLock()
	bot, ok := c.bots[token]
	c.mu.RUnlock()
	if ok {
		return bot, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if bot, ok := c.bots[token]; ok {
		return bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("create bot session: %w", err)
	}
	c.bots[token] = bot
	return bot, nil
}

// dropBot evicts a cached session, e.g. after the credential stopped working.
func (c *BotClient) dropBot(token string) {
	c.mu.Lock()
	delete(c.bots, token)
	c.mu.Unlock()
}

func (c *BotClient) GetIdentity(ctx context.Context, token string) (Identity, error) {
	bot, err := c.bot(token)
	if err != nil {
		c.dropBot(token)
		return Identity{}, err
	}
	return Identity{
		ID:        bot.Self.ID,
		Username:  bot.Self.UserName,
		FirstName: bot.Self.FirstName,
	}, nil
}

func (c *BotClient) SetWebhook(ctx context.Context, token, url string) error {
	bot, err := c.bot(token)
	if err != nil {
		return err
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	wh.AllowedUpdates = []string{"message", "callback_query"}
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

func (c *BotClient) DeleteWebhook(ctx context.Context, token string) error {
	bot, err := c.bot(token)
	if err != nil {
		return err
	}
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

func (c *BotClient) SendText(ctx context.Context, token string, chatID int64, text string, markup any) error {
	bot, err := c.bot(token)
	if err != nil {
		return err
	}

	chunks := SplitMessage(text, MaxMessageLength)
	var lastErr error
	for i, chunk := range chunks {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.chunkDelay):
			}
		}
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if i == 0 && markup != nil {
			msg.ReplyMarkup = markup
		}
		if _, err := c.send(bot, msg); err != nil {
			// Keep delivering the remaining chunks, a partial message
			// is better than a silently truncated one.
			c.log.Error("send chunk failed",
				slog.Int64("chat_id", chatID),
				slog.Int("chunk", i),
				slog.String("error", err.Error()))
			lastErr = err
		}
	}
	return lastErr
}

func (c *BotClient) SendFile(ctx context.Context, token string, chatID int64, path, caption string) error {
	bot, err := c.bot(token)
	if err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := bot.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

func (c *BotClient) AnswerCallback(ctx context.Context, token, callbackID, text string) error {
	bot, err := c.bot(token)
	if err != nil {
		return err
	}
	if _, err := bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

func (c *BotClient) SetMenuButton(ctx context.Context, token, text, url string) error {
	bot, err := c.bot(token)
	if err != nil {
		return err
	}
	button, err := json.Marshal(map[string]any{
		"type":    "web_app",
		"text":    text,
		"web_app": map[string]string{"url": url},
	})
	if err != nil {
		return err
	}
	params := tgbotapi.Params{"menu_button": string(button)}
	if _, err := bot.MakeRequest("setChatMenuButton", params); err != nil {
		return fmt.Errorf("set menu button: %w", err)
	}
	return nil
}
