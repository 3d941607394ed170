// Package dispatch drives the partner-facing conversation: linking a
// chat to a back office partner via a shared contact, and optional
// self-registration of unknown partners.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/partnergate/partnergate/internal/backoffice"
	"github.com/partnergate/partnergate/internal/registry"
)

// Callback payloads for the self-registration confirmation keyboard.
const (
	callbackConfirmRegistration = "selfreg:yes"
	callbackDeclineRegistration = "selfreg:no"
)

// TenantSettings is the per-tenant behavior the dispatcher needs.
type TenantSettings struct {
	AllowSelfRegistration bool
	PartnerGroupID        int64
	Language              string
}

// SettingsSource resolves tenant settings at conversation time, so an
// admin change applies without re-registering the bot.
type SettingsSource interface {
	TenantSettings(ctx context.Context, tenantID int64) (TenantSettings, error)
}

// PartnerService is the back office surface the conversation needs.
type PartnerService interface {
	FindPartnerByPhone(ctx context.Context, token, phone string) (*backoffice.Partner, error)
	FindPartnerByChat(ctx context.Context, token string, chatID int64) (*backoffice.Partner, error)
	LinkPartnerChat(ctx context.Context, token string, partnerID, chatID int64, lang string) error
	RegisterPartner(ctx context.Context, token string, p backoffice.NewPartner) (int64, error)
}

// Sender is the outbound side of the conversation.
type Sender interface {
	SendText(ctx context.Context, token string, chatID int64, text string, markup any) error
	AnswerCallback(ctx context.Context, token, callbackID, text string) error
}

// Dispatcher routes inbound chat updates for any registered bot.
type Dispatcher struct {
	log      *slog.Logger
	sender   Sender
	partners PartnerService
	settings SettingsSource
	pending  *PendingStore
}

func NewDispatcher(sender Sender, partners PartnerService, settings SettingsSource, pending *PendingStore) *Dispatcher {
	return &Dispatcher{
		log:      slog.With(slog.String("service", "dispatch")),
		sender:   sender,
		partners: partners,
		settings: settings,
		pending:  pending,
	}
}

// HandleUpdate processes one inbound update on behalf of the bot that
// received it. Unsupported update types are silently acknowledged.
func (d *Dispatcher) HandleUpdate(ctx context.Context, handle registry.BotHandle, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return d.handleCallback(ctx, handle, update.CallbackQuery)
	case update.Message == nil:
		return nil
	case update.Message.Contact != nil:
		return d.handleContact(ctx, handle, update.Message)
	case update.Message.Text != "":
		return d.handleText(ctx, handle, update.Message)
	default:
		return nil
	}
}

func (d *Dispatcher) handleText(ctx context.Context, handle registry.BotHandle, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	if strings.HasPrefix(msg.Text, "/start") {
		partner, err := d.partners.FindPartnerByChat(ctx, handle.IntegrationToken, chatID)
		if err != nil {
			d.log.Error("partner lookup failed",
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()))
		}
		if partner != nil {
			text := fmt.Sprintf("Здравствуйте, %s! Вы уже подключены к уведомлениям.", partner.Name)
			return d.sender.SendText(ctx, handle.Token, chatID, text, tgbotapi.NewRemoveKeyboard(false))
		}
		text := "Здравствуйте! Чтобы получать уведомления о документах и платежах, поделитесь своим контактом."
		return d.sender.SendText(ctx, handle.Token, chatID, text, contactKeyboard())
	}

	return d.sender.SendText(ctx, handle.Token, chatID,
		"Для подключения поделитесь своим контактом через кнопку ниже.", contactKeyboard())
}

func (d *Dispatcher) handleContact(ctx context.Context, handle registry.BotHandle, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	contact := msg.Contact

	// Only the sender's own contact proves ownership of the phone
	// number. Forwarded contacts of other people are rejected.
	if msg.From == nil || contact.UserID != msg.From.ID {
		return d.sender.SendText(ctx, handle.Token, chatID,
			"Пожалуйста, поделитесь именно своим контактом через кнопку ниже.", contactKeyboard())
	}

	partner, err := d.partners.FindPartnerByPhone(ctx, handle.IntegrationToken, contact.PhoneNumber)
	if err != nil {
		d.log.Error("partner search by phone failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()))
		return d.sender.SendText(ctx, handle.Token, chatID,
			"Не удалось проверить номер, попробуйте позже.", nil)
	}

	if partner != nil {
		if linked, ok := partner.ChatID(); ok && linked == chatID {
			return d.sender.SendText(ctx, handle.Token, chatID,
				"Вы уже подключены к уведомлениям.", tgbotapi.NewRemoveKeyboard(false))
		}
		settings, err := d.tenantSettings(ctx, handle.TenantID)
		if err != nil {
			return d.sender.SendText(ctx, handle.Token, chatID,
				"Не удалось подключить уведомления, попробуйте позже.", nil)
		}
		if err := d.partners.LinkPartnerChat(ctx, handle.IntegrationToken, partner.ID, chatID, settings.Language); err != nil {
			d.log.Error("partner link failed",
				slog.Int64("partner_id", partner.ID),
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()))
			return d.sender.SendText(ctx, handle.Token, chatID,
				"Не удалось подключить уведомления, попробуйте позже.", nil)
		}
		text := fmt.Sprintf("Готово, %s! Теперь вы будете получать уведомления о документах и платежах.", partner.Name)
		return d.sender.SendText(ctx, handle.Token, chatID, text, tgbotapi.NewRemoveKeyboard(false))
	}

	settings, err := d.tenantSettings(ctx, handle.TenantID)
	if err != nil {
		return d.sender.SendText(ctx, handle.Token, chatID,
			"Не удалось проверить номер, попробуйте позже.", nil)
	}
	if !settings.AllowSelfRegistration {
		return d.sender.SendText(ctx, handle.Token, chatID,
			"Ваш номер не найден. Обратитесь к вашему менеджеру для подключения.", tgbotapi.NewRemoveKeyboard(false))
	}

	name := strings.TrimSpace(contact.FirstName)
	fullName := strings.TrimSpace(strings.TrimSpace(contact.FirstName + " " + contact.LastName))
	d.pending.Put(PendingRegistration{
		TenantID: handle.TenantID,
		ChatID:   chatID,
		Phone:    contact.PhoneNumber,
		Name:     name,
		FullName: fullName,
	})

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Да", callbackConfirmRegistration),
			tgbotapi.NewInlineKeyboardButtonData("Нет", callbackDeclineRegistration),
		),
	)
	text := fmt.Sprintf("Номер %s не найден. Зарегистрировать вас как нового партнера?", contact.PhoneNumber)
	return d.sender.SendText(ctx, handle.Token, chatID, text, keyboard)
}

func (d *Dispatcher) handleCallback(ctx context.Context, handle registry.BotHandle, cb *tgbotapi.CallbackQuery) error {
	if cb.Message == nil {
		return d.sender.AnswerCallback(ctx, handle.Token, cb.ID, "")
	}
	chatID := cb.Message.Chat.ID

	switch cb.Data {
	case callbackConfirmRegistration:
		reg, ok := d.pending.Get(handle.TenantID, chatID)
		if !ok {
			// The confirmation arrived after the pending entry expired
			// or was already consumed.
			if err := d.sender.AnswerCallback(ctx, handle.Token, cb.ID, "Запрос устарел"); err != nil {
				return err
			}
			return d.sender.SendText(ctx, handle.Token, chatID,
				"Запрос на регистрацию устарел. Отправьте контакт еще раз.", contactKeyboard())
		}
		if err := d.sender.AnswerCallback(ctx, handle.Token, cb.ID, ""); err != nil {
			d.log.Warn("answer callback failed", slog.String("error", err.Error()))
		}

		// The pending entry survives transient failures below, so the
		// partner can tap the button again instead of starting over.
		settings, err := d.tenantSettings(ctx, handle.TenantID)
		if err != nil {
			return d.sender.SendText(ctx, handle.Token, chatID,
				"Не удалось завершить регистрацию, попробуйте позже.", nil)
		}
		_, err = d.partners.RegisterPartner(ctx, handle.IntegrationToken, backoffice.NewPartner{
			GroupID:  settings.PartnerGroupID,
			Name:     reg.Name,
			FullName: reg.FullName,
			Phones:   reg.Phone,
			ChatID:   chatID,
			Language: settings.Language,
		})
		if err != nil {
			d.log.Error("partner self-registration failed",
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()))
			return d.sender.SendText(ctx, handle.Token, chatID,
				"Не удалось завершить регистрацию, попробуйте позже.", nil)
		}
		d.pending.Delete(handle.TenantID, chatID)
		return d.sender.SendText(ctx, handle.Token, chatID,
			"Регистрация завершена! Теперь вы будете получать уведомления.", tgbotapi.NewRemoveKeyboard(false))

	case callbackDeclineRegistration:
		d.pending.Delete(handle.TenantID, chatID)
		if err := d.sender.AnswerCallback(ctx, handle.Token, cb.ID, ""); err != nil {
			d.log.Warn("answer callback failed", slog.String("error", err.Error()))
		}
		return d.sender.SendText(ctx, handle.Token, chatID,
			"Регистрация отменена.", tgbotapi.NewRemoveKeyboard(false))

	default:
		return d.sender.AnswerCallback(ctx, handle.Token, cb.ID, "")
	}
}

func (d *Dispatcher) tenantSettings(ctx context.Context, tenantID int64) (TenantSettings, error) {
	settings, err := d.settings.TenantSettings(ctx, tenantID)
	if err != nil {
		d.log.Error("tenant settings lookup failed",
			slog.Int64("tenant_id", tenantID),
			slog.String("error", err.Error()))
		return TenantSettings{}, fmt.Errorf("tenant settings: %w", err)
	}
	if settings.Language == "" {
		settings.Language = "ru"
	}
	return settings, nil
}

func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("📱 Поделиться контактом"),
		),
	)
	keyboard.OneTimeKeyboard = true
	keyboard.ResizeKeyboard = true
	return keyboard
}
