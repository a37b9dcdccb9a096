package notify

import (
	"encoding/json"
	"fmt"

	"staybooking/internal/config"
	"staybooking/internal/domain"
	"staybooking/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier posts booking activity to an operator chat.
type TelegramNotifier struct {
	bot    domain.TelegramSender
	chatID int64
}

// NewBotAPI connects to Telegram with the configured token.
func NewBotAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

func NewTelegramNotifier(bot domain.TelegramSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) Attach(bus *events.EventBus) {
	for _, t := range []string{
		events.EventStayCreated,
		events.EventStayDeleted,
		events.EventReservationCreated,
		events.EventReservationCanceled,
	} {
		bus.Subscribe(t, n.Handle)
	}
}

func (n *TelegramNotifier) Handle(event *events.Event) error {
	text, err := formatEvent(event)
	if err != nil {
		return err
	}
	_, err = n.bot.Send(tgbotapi.NewMessage(n.chatID, text))
	return err
}

func formatEvent(event *events.Event) (string, error) {
	switch event.Type {
	case events.EventStayCreated, events.EventStayDeleted:
		var p events.StayEventPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return "", fmt.Errorf("decode %s: %w", event.Type, err)
		}
		if event.Type == events.EventStayCreated {
			return fmt.Sprintf("🏠 Новое жильё #%d «%s»\n%s\nХозяин: %s", p.StayID, p.Name, p.Address, p.HostID), nil
		}
		return fmt.Sprintf("🗑 Жильё #%d удалено (хозяин %s)", p.StayID, p.HostID), nil

	case events.EventReservationCreated, events.EventReservationCanceled:
		var p events.ReservationEventPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return "", fmt.Errorf("decode %s: %w", event.Type, err)
		}
		if event.Type == events.EventReservationCreated {
			return fmt.Sprintf("✅ Бронь #%d: жильё #%d, %s → %s, гость %s",
				p.ReservationID, p.StayID, p.CheckinDate, p.CheckoutDate, p.GuestID), nil
		}
		return fmt.Sprintf("❌ Бронь #%d отменена: жильё #%d, %s → %s",
			p.ReservationID, p.StayID, p.CheckinDate, p.CheckoutDate), nil

	default:
		return "", fmt.Errorf("unsupported event %s", event.Type)
	}
}
