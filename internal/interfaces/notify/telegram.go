package notify

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/pkg/safego"
)

// TelegramNotifier pushes pending-approval notifications to the configured
// reviewer chats. Delivery is fire-and-forget: a failed send is logged and
// never propagated to the conversation flow.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	logger  *zap.Logger
}

// NewTelegramNotifier creates a notifier for the given bot token and chats.
func NewTelegramNotifier(botToken string, chatIDs []int64, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("Telegram notifier initialized",
		zap.String("bot", bot.Self.UserName),
		zap.Int("chats", len(chatIDs)),
	)

	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		logger:  logger,
	}, nil
}

// NotifyPendingApproval sends a review request for a low-confidence draft.
func (n *TelegramNotifier) NotifyPendingApproval(ctx context.Context, conversation *entity.Conversation, response *entity.AIResponse, customerMessage, draft string) {
	if len(n.chatIDs) == 0 {
		return
	}

	text := fmt.Sprintf(
		"🔔 <b>Review requested</b> (%s priority)\n\n"+
			"<b>Customer:</b>\n%s\n\n"+
			"<b>AI draft</b> (confidence %.2f, %s/%s):\n%s\n\n"+
			"<code>careloop review</code> · response <code>%s</code>",
		html.EscapeString(string(conversation.Priority)),
		html.EscapeString(customerMessage),
		response.Confidence,
		html.EscapeString(response.Provider),
		html.EscapeString(response.Model),
		markdownToTelegramHTML(draft),
		html.EscapeString(response.ID),
	)

	safego.Go(n.logger, "telegram-notify", func() {
		for _, chatID := range n.chatIDs {
			msg := tgbotapi.NewMessage(chatID, text)
			msg.ParseMode = tgbotapi.ModeHTML
			if _, err := n.bot.Send(msg); err != nil {
				n.logger.Warn("Failed to send review notification",
					zap.Int64("chat_id", chatID),
					zap.String("response_id", response.ID),
					zap.Error(err),
				)
			}
		}
	})
}
