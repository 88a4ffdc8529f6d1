package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"go.uber.org/zap"
)

const (
	reviewHeader = "📝 *Post Review*\n\n"
	reasonPrompt = "❌ Please reply with a short reason for rejection."
)

// botAPI is the part of the Telegram Bot API the channel uses. *tgbotapi.BotAPI satisfies it.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// TelegramChannel carries reviews over a Telegram bot in a single chat.
// Only button presses on the latest review message and messages sent after it
// count; everything else is reported as EventUnknown.
type TelegramChannel struct {
	bot         botAPI
	chatID      int64
	pollTimeout int
	logger      *zap.Logger

	mu          sync.Mutex
	reviewMsgID int
}

var _ Channel = (*TelegramChannel)(nil)

// TelegramOption configures a TelegramChannel.
type TelegramOption func(*TelegramChannel)

// WithTelegramLogger sets the logger.
func WithTelegramLogger(l *zap.Logger) TelegramOption {
	return func(c *TelegramChannel) { c.logger = l }
}

func withBot(b botAPI) TelegramOption {
	return func(c *TelegramChannel) { c.bot = b }
}

// NewTelegramChannel connects to the bot identified by cfg.BotToken.
func NewTelegramChannel(cfg *config.TelegramConfig, opts ...TelegramOption) (*TelegramChannel, error) {
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is not configured")
	}
	c := &TelegramChannel{chatID: cfg.ChatID, pollTimeout: cfg.PollTimeout}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	if c.bot == nil {
		if cfg.BotToken == "" {
			return nil, errors.New("telegram bot token is not configured")
		}
		bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			return nil, fmt.Errorf("connect telegram bot: %w", err)
		}
		c.bot = bot
	}
	return c, nil
}

// SendReview posts the draft with Approve and Reject buttons.
func (c *TelegramChannel) SendReview(ctx context.Context, postText string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(c.chatID, reviewHeader+tgbotapi.EscapeText(tgbotapi.ModeMarkdown, postText))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", string(Approve)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", string(Reject)),
		),
	)
	sent, err := c.bot.Send(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.reviewMsgID = sent.MessageID
	c.mu.Unlock()
	c.logger.Debug("telegram review message sent", zap.Int("message_id", sent.MessageID))
	return nil
}

// AskReason prompts the reviewer for a rejection reason.
func (c *TelegramChannel) AskReason(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Send(tgbotapi.NewMessage(c.chatID, reasonPrompt))
	return err
}

// Acknowledge answers a callback query so the client stops its spinner.
func (c *TelegramChannel) Acknowledge(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// Updates long-polls for updates with IDs at or above offset.
func (c *TelegramChannel) Updates(ctx context.Context, offset int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = c.pollTimeout
	updates, err := c.bot.GetUpdates(u)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(updates))
	for _, up := range updates {
		events = append(events, c.toEvent(up))
	}
	return events, nil
}

// toEvent maps a Telegram update onto a gate event.
func (c *TelegramChannel) toEvent(u tgbotapi.Update) Event {
	c.mu.Lock()
	reviewMsgID := c.reviewMsgID
	c.mu.Unlock()

	ev := Event{ID: u.UpdateID, Kind: EventUnknown}
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		ev.CallbackID = cq.ID
		ev.Data = cq.Data
		if cq.Message == nil || cq.Message.Chat == nil || cq.Message.Chat.ID != c.chatID {
			return ev
		}
		if reviewMsgID != 0 && cq.Message.MessageID != reviewMsgID {
			return ev
		}
		ev.Kind = EventAction
	case u.Message != nil:
		m := u.Message
		if m.Chat == nil || m.Chat.ID != c.chatID || m.Text == "" {
			return ev
		}
		// Message IDs are per-chat and monotonic; Date is server clock.
		if reviewMsgID != 0 && m.MessageID <= reviewMsgID {
			return ev
		}
		ev.Kind = EventMessage
		ev.Text = m.Text
	}
	return ev
}
