package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/partnergate/partnergate/internal/backoffice"
	"github.com/partnergate/partnergate/internal/registry"
)

type recordedMessage struct {
	chatID int64
	text   string
	markup any
}

type fakeSender struct {
	messages  []recordedMessage
	callbacks []string
}

func (f *fakeSender) SendText(ctx context.Context, token string, chatID int64, text string, markup any) error {
	f.messages = append(f.messages, recordedMessage{chatID, text, markup})
	return nil
}

func (f *fakeSender) AnswerCallback(ctx context.Context, token, callbackID, text string) error {
	f.callbacks = append(f.callbacks, callbackID)
	return nil
}

type fakePartners struct {
	byPhone    *backoffice.Partner
	byChat     *backoffice.Partner
	linked     []int64
	registered []backoffice.NewPartner
}

func (f *fakePartners) FindPartnerByPhone(ctx context.Context, token, phone string) (*backoffice.Partner, error) {
	return f.byPhone, nil
}

func (f *fakePartners) FindPartnerByChat(ctx context.Context, token string, chatID int64) (*backoffice.Partner, error) {
	return f.byChat, nil
}

func (f *fakePartners) LinkPartnerChat(ctx context.Context, token string, partnerID, chatID int64, lang string) error {
	f.linked = append(f.linked, partnerID)
	return nil
}

func (f *fakePartners) RegisterPartner(ctx context.Context, token string, p backoffice.NewPartner) (int64, error) {
	f.registered = append(f.registered, p)
	return 900, nil
}

type fakeSettings struct {
	settings TenantSettings
	err      error
}

func (f *fakeSettings) TenantSettings(ctx context.Context, tenantID int64) (TenantSettings, error) {
	if f.err != nil {
		return TenantSettings{}, f.err
	}
	return f.settings, nil
}

func testHandle() registry.BotHandle {
	return registry.BotHandle{Token: "bot-token", TenantID: 4, IntegrationToken: "int-4"}
}

func contactUpdate(chatID, fromID, contactUserID int64, phone string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: fromID},
		Contact: &tgbotapi.Contact{
			PhoneNumber: phone,
			FirstName:   "Ali",
			LastName:    "Valiyev",
			UserID:      contactUserID,
		},
	}}
}

func TestContactOwnershipRejected(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	partners := &fakePartners{byPhone: &backoffice.Partner{ID: 1}}
	d := NewDispatcher(sender, partners, &fakeSettings{}, NewPendingStore(time.Minute))

	// A forwarded contact carries someone else's user id.
	err := d.HandleUpdate(context.Background(), testHandle(), contactUpdate(100, 100, 555, "+998901112233"))
	if err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}
	if len(partners.linked) != 0 {
		t.Fatalf("linked partners %v, want none for foreign contact", partners.linked)
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0].text, "своим контактом") {
		t.Fatalf("messages = %+v, want ownership rejection", sender.messages)
	}
}

func TestContactLinksKnownPartner(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	partners := &fakePartners{byPhone: &backoffice.Partner{ID: 31, Name: "ООО Ромашка"}}
	d := NewDispatcher(sender, partners, &fakeSettings{settings: TenantSettings{Language: "ru"}}, NewPendingStore(time.Minute))

	err := d.HandleUpdate(context.Background(), testHandle(), contactUpdate(100, 100, 100, "+998901112233"))
	if err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}
	if len(partners.linked) != 1 || partners.linked[0] != 31 {
		t.Fatalf("linked = %v, want [31]", partners.linked)
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0].text, "Готово") {
		t.Fatalf("messages = %+v, want link confirmation", sender.messages)
	}
}

func TestContactAlreadyLinkedIsNoOp(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	partners := &fakePartners{byPhone: &backoffice.Partner{ID: 31, Oked: "100"}}
	d := NewDispatcher(sender, partners, &fakeSettings{}, NewPendingStore(time.Minute))

	err := d.HandleUpdate(context.Background(), testHandle(), contactUpdate(100, 100, 100, "+998901112233"))
	if err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}
	if len(partners.linked) != 0 {
		t.Fatalf("linked = %v, want none when already linked", partners.linked)
	}
}

func TestUnknownPhoneWithoutSelfRegistration(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	d := NewDispatcher(sender, &fakePartners{}, &fakeSettings{}, NewPendingStore(time.Minute))

	err := d.HandleUpdate(context.Background(), testHandle(), contactUpdate(100, 100, 100, "+998900000000"))
	if err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0].text, "не найден") {
		t.Fatalf("messages = %+v, want not-found reply", sender.messages)
	}
}

func TestSelfRegistrationConfirmFlow(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	partners := &fakePartners{}
	settings := &fakeSettings{settings: TenantSettings{AllowSelfRegistration: true, PartnerGroupID: 12, Language: "ru"}}
	pending := NewPendingStore(time.Minute)
	d := NewDispatcher(sender, partners, settings, pending)
	handle := testHandle()

	if err := d.HandleUpdate(context.Background(), handle, contactUpdate(100, 100, 100, "+998905556677")); err != nil {
		t.Fatalf("contact HandleUpdate() error = %v", err)
	}
	if _, ok := pending.Get(handle.TenantID, 100); !ok {
		t.Fatalf("no pending registration stored")
	}

	confirm := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    "selfreg:yes",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
	}}
	if err := d.HandleUpdate(context.Background(), handle, confirm); err != nil {
		t.Fatalf("confirm HandleUpdate() error = %v", err)
	}

	if len(partners.registered) != 1 {
		t.Fatalf("registered %d partners, want 1", len(partners.registered))
	}
	got := partners.registered[0]
	if got.GroupID != 12 || got.Phones != "+998905556677" || got.ChatID != 100 {
		t.Fatalf("registered = %+v, want group 12, phone +998905556677, chat 100", got)
	}
	if _, ok := pending.Get(handle.TenantID, 100); ok {
		t.Fatalf("pending registration survived confirmation")
	}
}

func TestContactSettingsFailureStillReplies(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	partners := &fakePartners{byPhone: &backoffice.Partner{ID: 31, Name: "ООО Ромашка"}}
	settings := &fakeSettings{err: errors.New("settings store down")}
	d := NewDispatcher(sender, partners, settings, NewPendingStore(time.Minute))

	err := d.HandleUpdate(context.Background(), testHandle(), contactUpdate(100, 100, 100, "+998901112233"))
	if err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}
	if len(partners.linked) != 0 {
		t.Fatalf("linked = %v, want none when settings are unavailable", partners.linked)
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0].text, "попробуйте позже") {
		t.Fatalf("messages = %+v, want apology reply", sender.messages)
	}
}

func TestConfirmKeepsPendingOnSettingsFailure(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	partners := &fakePartners{}
	settings := &fakeSettings{err: errors.New("settings store down")}
	pending := NewPendingStore(time.Minute)
	d := NewDispatcher(sender, partners, settings, pending)
	handle := testHandle()

	pending.Put(PendingRegistration{
		TenantID: handle.TenantID,
		ChatID:   100,
		Phone:    "+998905556677",
		Name:     "Ali",
	})

	confirm := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-retry",
		Data:    "selfreg:yes",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
	}}
	if err := d.HandleUpdate(context.Background(), handle, confirm); err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}

	if len(partners.registered) != 0 {
		t.Fatalf("registered %d partners, want 0 on settings failure", len(partners.registered))
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0].text, "попробуйте позже") {
		t.Fatalf("messages = %+v, want apology reply", sender.messages)
	}
	// The pending entry must survive so the partner can retry the button.
	if _, ok := pending.Get(handle.TenantID, 100); !ok {
		t.Fatalf("pending registration consumed by transient settings failure")
	}

	settings.err = nil
	settings.settings = TenantSettings{AllowSelfRegistration: true, PartnerGroupID: 12, Language: "ru"}
	if err := d.HandleUpdate(context.Background(), handle, confirm); err != nil {
		t.Fatalf("retry HandleUpdate() error = %v", err)
	}
	if len(partners.registered) != 1 {
		t.Fatalf("registered %d partners on retry, want 1", len(partners.registered))
	}
	if _, ok := pending.Get(handle.TenantID, 100); ok {
		t.Fatalf("pending registration survived successful retry")
	}
}

func TestStaleCallbackIsSafe(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	partners := &fakePartners{}
	d := NewDispatcher(sender, partners, &fakeSettings{settings: TenantSettings{AllowSelfRegistration: true}}, NewPendingStore(time.Minute))

	confirm := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-stale",
		Data:    "selfreg:yes",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
	}}
	if err := d.HandleUpdate(context.Background(), testHandle(), confirm); err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}

	if len(partners.registered) != 0 {
		t.Fatalf("registered %d partners from stale callback, want 0", len(partners.registered))
	}
	if len(sender.callbacks) != 1 {
		t.Fatalf("answered %d callbacks, want 1", len(sender.callbacks))
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0].text, "устарел") {
		t.Fatalf("messages = %+v, want stale notice", sender.messages)
	}
}

func TestDeclineClearsPending(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	pending := NewPendingStore(time.Minute)
	d := NewDispatcher(sender, &fakePartners{}, &fakeSettings{settings: TenantSettings{AllowSelfRegistration: true}}, pending)
	handle := testHandle()

	if err := d.HandleUpdate(context.Background(), handle, contactUpdate(100, 100, 100, "+998905556677")); err != nil {
		t.Fatalf("contact HandleUpdate() error = %v", err)
	}
	decline := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-2",
		Data:    "selfreg:no",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
	}}
	if err := d.HandleUpdate(context.Background(), handle, decline); err != nil {
		t.Fatalf("decline HandleUpdate() error = %v", err)
	}
	if _, ok := pending.Get(handle.TenantID, 100); ok {
		t.Fatalf("pending registration survived decline")
	}
}

func TestStartForLinkedPartner(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	partners := &fakePartners{byChat: &backoffice.Partner{ID: 5, Name: "ООО Лотос", Oked: "100"}}
	d := NewDispatcher(sender, partners, &fakeSettings{}, NewPendingStore(time.Minute))

	start := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 100},
		From: &tgbotapi.User{ID: 100},
		Text: "/start",
	}}
	if err := d.HandleUpdate(context.Background(), testHandle(), start); err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0].text, "уже подключены") {
		t.Fatalf("messages = %+v, want already-connected reply", sender.messages)
	}
}
