// Package telegram provides the Telegram bot for admin notifications and commands.
package telegram

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Manjussha/inkd/internal/usage"
)

// Bot wraps the Telegram bot API.
type Bot struct {
	api         *tgbotapi.BotAPI
	adminChatID int64
	handler     *CommandHandler
}

// New creates a Bot. Returns nil if token is empty (Telegram disabled).
func New(token string, adminChatID int64, handler *CommandHandler) (*Bot, error) {
	if token == "" {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram.New: %w", err)
	}
	b := &Bot{api: api, adminChatID: adminChatID, handler: handler}
	if handler != nil {
		handler.bot = b
	}
	return b, nil
}

// Send sends a plain text message to the admin chat.
func (b *Bot) Send(msg string) error {
	if b == nil {
		return nil
	}
	m := tgbotapi.NewMessage(b.adminChatID, msg)
	m.ParseMode = "Markdown"
	_, err := b.api.Send(m)
	if err != nil {
		return fmt.Errorf("telegram.Send: %w", err)
	}
	return nil
}

// SendEvent renders low-credit alerts with one-tap grant buttons.
// Other events are left to the plain text path.
func (b *Bot) SendEvent(event string, payload interface{}) (bool, error) {
	if b == nil || event != usage.EventCreditLow {
		return false, nil
	}
	a, ok := payload.(*usage.Alert)
	if !ok {
		return false, nil
	}
	msg := tgbotapi.NewMessage(b.adminChatID, a.Message)
	if kb, ok := grantKeyboard(a.UserID); ok {
		msg.ReplyMarkup = kb
	}
	if _, err := b.api.Send(msg); err != nil {
		return true, fmt.Errorf("telegram.SendEvent: %w", err)
	}
	return true, nil
}

// maxCallbackData is Telegram's limit on inline button payloads.
const maxCallbackData = 64

// grantKeyboard builds one-tap grant buttons. It reports false when the
// user id is too long to fit the callback payload.
func grantKeyboard(userID string) (tgbotapi.InlineKeyboardMarkup, bool) {
	small, large := grantData(userID, 1000), grantData(userID, 5000)
	if len(small) > maxCallbackData || len(large) > maxCallbackData {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ 1,000 words", small),
			tgbotapi.NewInlineKeyboardButtonData("➕ 5,000 words", large),
		),
	), true
}

func grantData(userID string, words int) string {
	return fmt.Sprintf("grant:%s:%d", userID, words)
}

// Start begins polling for updates. Must be called in a goroutine.
// Only processes messages from adminChatID.
func (b *Bot) Start(ctx context.Context) {
	if b == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.CallbackQuery != nil {
				b.handleCallback(update.CallbackQuery)
				continue
			}
			if update.Message == nil || update.Message.Chat.ID != b.adminChatID {
				continue
			}
			if b.handler != nil {
				b.handler.Handle(update.Message)
			}
		}
	}
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	// Grant buttons only act when pressed inside the admin chat.
	if query.Message == nil || query.Message.Chat.ID != b.adminChatID || b.handler == nil {
		return
	}
	text := b.handler.HandleCallback(query.Data)
	ack := tgbotapi.NewCallback(query.ID, "")
	if _, err := b.api.Request(ack); err != nil {
		log.Printf("telegram: ack callback: %v", err)
	}
	if text != "" {
		b.reply(b.adminChatID, text)
	}
}

// reply sends a text reply to a message.
func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("telegram.reply: %v", err)
	}
}
