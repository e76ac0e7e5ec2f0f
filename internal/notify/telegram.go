package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	iconDefault = "🟢"
	iconHigh    = "🔥"
	iconDue     = "⏳"
)

type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts notifications to a single chat through the Bot API.
type Telegram struct {
	api    chatSender
	chatID int64
}

// NewTelegram authorizes the bot token and returns a notifier for chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) TaskCreated(ctx context.Context, n TaskCreated) error {
	return t.send(ctx, formatTaskCreated(n))
}

func (t *Telegram) DueSoon(ctx context.Context, recipient string, tasks []DueTask) error {
	return t.send(ctx, formatDueSoon(recipient, tasks))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func formatTaskCreated(n TaskCreated) string {
	var sb strings.Builder

	icon := iconDefault
	if n.Priority == "High" {
		icon = iconHigh
	}
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n", icon, html.EscapeString(strings.TrimSpace(n.Title))))
	if d := strings.TrimSpace(n.Description); d != "" {
		sb.WriteString(fmt.Sprintf("📝 %s\n", html.EscapeString(d)))
	}
	sb.WriteString(fmt.Sprintf("🏷 %s · %s\n", html.EscapeString(n.Priority), html.EscapeString(n.Type)))
	sb.WriteString(fmt.Sprintf("📆 %s → %s\n", n.StartDate.Format(dateLayout), n.EndDate.Format(dateLayout)))
	if len(n.Assignees) > 0 {
		sb.WriteString(fmt.Sprintf("👥 %s\n", html.EscapeString(strings.Join(n.Assignees, ", "))))
	}
	if len(n.Tags) > 0 {
		tags := make([]string, len(n.Tags))
		for i, tag := range n.Tags {
			tags[i] = "#" + html.EscapeString(tag)
		}
		sb.WriteString(fmt.Sprintf("🔖 %s\n", strings.Join(tags, " ")))
	}
	if n.AttachmentCount > 0 {
		sb.WriteString(fmt.Sprintf("📎 %d\n", n.AttachmentCount))
	}
	sb.WriteString(fmt.Sprintf("✉️ %s", html.EscapeString(n.Recipient)))
	return sb.String()
}

func formatDueSoon(recipient string, tasks []DueTask) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>Ending soon</b> (%s)\n", iconDue, html.EscapeString(recipient)))
	for _, task := range tasks {
		sb.WriteString(fmt.Sprintf("\n• %s <i>(%s, %s)</i> · due %s",
			html.EscapeString(strings.TrimSpace(task.Title)),
			html.EscapeString(task.Priority),
			html.EscapeString(task.Status),
			task.EndDate.Format(dateLayout)))
	}
	return sb.String()
}
