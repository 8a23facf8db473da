// Package publisher pushes approved articles to a Telegram channel.
package publisher

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"murrasil/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram publishes approved news items to a channel. Publishing is
// best-effort: a failed send never rolls back an approval.
type Telegram struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
}

// New creates a Telegram publisher for the given channel.
func New(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

// NewWithAPI creates a publisher with a custom Telegram API (useful for testing).
func NewWithAPI(api telegramAPI, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, log: log}
}

// Publish sends the item's generated article to the channel.
func (t *Telegram) Publish(item *model.NewsItem) {
	msg := tgbotapi.NewMessage(t.chatID, formatArticle(item))
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("publish article", "id", item.ID, "error", err)
		return
	}
	t.log.Info("published article", "id", item.ID, "source", item.SourceName)
}

// Telegram counts the message limit in characters, not bytes.
const messageLimit = 4096

// formatArticle renders the channel message: generated article first, then
// attribution with the original link. Truncation happens on rune boundaries
// so Arabic text stays valid UTF-8.
func formatArticle(item *model.NewsItem) string {
	var b strings.Builder
	b.WriteString(item.ArticleAr)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("المصدر: %s\n%s", item.SourceName, item.OriginalURL))

	text := b.String()
	if runes := []rune(text); len(runes) > messageLimit {
		text = string(runes[:messageLimit-3]) + "..."
	}
	return text
}
