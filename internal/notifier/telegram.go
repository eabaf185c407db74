package notifier

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillm/signal-bot/pkg/utils"
)

// TelegramNotifier отправляет уведомления о сделках в Telegram.
// Без токена бот работает молча: уведомления не обязательны для торговли.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *utils.Logger
}

// NewTelegramNotifier создает нотификатор. Пустой токен даёт nil —
// вызывающий код использует NotifyFunc, безопасный для nil.
func NewTelegramNotifier(token string, chatID int64, logger *utils.Logger) (*TelegramNotifier, error) {
	if token == "" {
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	return &TelegramNotifier{
		api:    api,
		chatID: chatID,
		logger: logger,
	}, nil
}

// Notify отправляет сообщение в чат
func (n *TelegramNotifier) Notify(text string) {
	message := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(message); err != nil {
		n.logger.Error("Failed to send telegram notification: %v", err)
	}
}

// NotifyFunc возвращает callback для оркестратора (nil-safe)
func (n *TelegramNotifier) NotifyFunc() func(string) {
	if n == nil {
		return nil
	}
	return n.Notify
}
