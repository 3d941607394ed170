package events

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/partnergate/partnergate/internal/backoffice"
	"github.com/partnergate/partnergate/internal/registry"
)

type fakeResolver struct {
	handles map[string]registry.BotHandle
}

func (f *fakeResolver) LookupByIntegrationToken(token string) (registry.BotHandle, bool) {
	h, ok := f.handles[token]
	return h, ok
}

type fakeFetcher struct {
	document  *backoffice.Document
	ops       []backoffice.Operation
	payment   *backoffice.Payment
	warehouse string
	fetchErr  error
}

func (f *fakeFetcher) GetDocument(ctx context.Context, token, endpoint string, id int64) (*backoffice.Document, error) {
	return f.document, f.fetchErr
}

func (f *fakeFetcher) GetOperations(ctx context.Context, token, endpoint string, documentID int64) ([]backoffice.Operation, error) {
	return f.ops, nil
}

func (f *fakeFetcher) GetPayment(ctx context.Context, token string, id int64) (*backoffice.Payment, error) {
	return f.payment, f.fetchErr
}

func (f *fakeFetcher) GetWarehouseName(ctx context.Context, token string, stockID int64) (string, error) {
	return f.warehouse, nil
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

type sentMessage struct {
	chatID int64
	text   string
}

func (f *fakeSender) SendText(ctx context.Context, token string, chatID int64, text string, markup any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{chatID, text})
	return nil
}

func testEnvelope(action string) Envelope {
	return Envelope{
		Action:        "HandleWebhook",
		EventID:       "evt-" + action,
		IntegrationID: "int-1",
		Data:          Event{Action: action, Data: EventData{ID: 55}},
	}
}

func testRouter(fetcher *fakeFetcher, sender *fakeSender) *Router {
	resolver := &fakeResolver{handles: map[string]registry.BotHandle{
		"int-1": {Token: "bot-token", TenantID: 9, IntegrationToken: "int-1"},
	}}
	return NewRouter(NewCache(time.Hour), resolver, fetcher, sender, time.UTC)
}

func TestRouterProcessesWholesale(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		document: &backoffice.Document{
			Code:    "WS-1",
			Date:    1717243200,
			Partner: &backoffice.Partner{ID: 3, Oked: "100500"},
			Stock:   &backoffice.Ref{ID: 2},
		},
		ops:       []backoffice.Operation{{Item: backoffice.Ref{Name: "Товар"}, Quantity: 2, Price: 10}},
		warehouse: "Основной склад",
	}
	sender := &fakeSender{}

	result, err := testRouter(fetcher, sender).Handle(context.Background(), testEnvelope("DocWholeSalePerformed"))
	if err != nil || result != ResultProcessed {
		t.Fatalf("Handle() = (%v, %v), want (processed, nil)", result, err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if sender.sent[0].chatID != 100500 {
		t.Fatalf("sent to chat %d, want 100500", sender.sent[0].chatID)
	}
	// The partner buys what the system sells.
	if !strings.Contains(sender.sent[0].text, "Чек закупки") {
		t.Fatalf("message missing inverted receipt title: %q", sender.sent[0].text)
	}
	if !strings.Contains(sender.sent[0].text, "Основной склад") {
		t.Fatalf("message missing warehouse name: %q", sender.sent[0].text)
	}
}

func TestRouterDuplicateShortCircuits(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		document: &backoffice.Document{Code: "WS-1", Partner: &backoffice.Partner{Oked: "5"}},
		ops:      []backoffice.Operation{{Quantity: 1, Price: 1}},
	}
	sender := &fakeSender{}
	router := testRouter(fetcher, sender)
	env := testEnvelope("DocWholeSalePerformed")

	if result, _ := router.Handle(context.Background(), env); result != ResultProcessed {
		t.Fatalf("first Handle() = %v, want processed", result)
	}
	result, err := router.Handle(context.Background(), env)
	if err != nil || result != ResultDuplicate {
		t.Fatalf("second Handle() = (%v, %v), want (duplicate, nil)", result, err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages after duplicate, want 1", len(sender.sent))
	}
}

func TestRouterNoMatchingTenant(t *testing.T) {
	t.Parallel()

	router := testRouter(&fakeFetcher{}, &fakeSender{})
	env := testEnvelope("DocWholeSalePerformed")
	env.IntegrationID = "unknown"
	env.EventID = "evt-no-tenant"

	result, err := router.Handle(context.Background(), env)
	if err != nil || result != ResultNoTenant {
		t.Fatalf("Handle() = (%v, %v), want (no_matching_tenant, nil)", result, err)
	}
}

func TestRouterNoRecipient(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		document: &backoffice.Document{Code: "WS-1", Partner: &backoffice.Partner{Oked: "not a number"}},
		ops:      []backoffice.Operation{{Quantity: 1, Price: 1}},
	}
	sender := &fakeSender{}

	result, err := testRouter(fetcher, sender).Handle(context.Background(), testEnvelope("DocWholeSalePerformed"))
	if err != nil || result != ResultNoRecipient {
		t.Fatalf("Handle() = (%v, %v), want (no_recipient, nil)", result, err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("sent %d messages, want 0", len(sender.sent))
	}
}

func TestRouterIgnoresUnknownAction(t *testing.T) {
	t.Parallel()

	result, err := testRouter(&fakeFetcher{}, &fakeSender{}).Handle(context.Background(), testEnvelope("ItemEdited"))
	if err != nil || result != ResultIgnored {
		t.Fatalf("Handle() = (%v, %v), want (ignored, nil)", result, err)
	}
}

func TestRouterFailedFetch(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{fetchErr: errors.New("backoffice down")}
	result, err := testRouter(fetcher, &fakeSender{}).Handle(context.Background(), testEnvelope("DocPaymentPerformed"))
	if err == nil || result != ResultFailed {
		t.Fatalf("Handle() = (%v, %v), want (failed, error)", result, err)
	}
}

func TestRouterPaymentCancelled(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		payment: &backoffice.Payment{
			Code:     "PAY-9",
			Amount:   1500,
			Partner:  &backoffice.Partner{Oked: "777"},
			Currency: &backoffice.Ref{Name: "UZS"},
		},
		warehouse: "Касса",
	}
	sender := &fakeSender{}

	result, err := testRouter(fetcher, sender).Handle(context.Background(), testEnvelope("DocPaymentPerformCanceled"))
	if err != nil || result != ResultProcessed {
		t.Fatalf("Handle() = (%v, %v), want (processed, nil)", result, err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].text, "ОТМЕНЕНО") {
		t.Fatalf("cancelled payment message missing notice: %q", sender.sent[0].text)
	}
}
