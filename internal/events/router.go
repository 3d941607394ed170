package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/partnergate/partnergate/internal/backoffice"
	"github.com/partnergate/partnergate/internal/receipt"
	"github.com/partnergate/partnergate/internal/registry"
)

// Result classifies what the router did with an event. Every result
// except ResultFailed is a terminal, acknowledged outcome.
type Result string

const (
	ResultProcessed   Result = "processed"
	ResultDuplicate   Result = "duplicate"
	ResultNoTenant    Result = "no_matching_tenant"
	ResultNoRecipient Result = "no_recipient"
	ResultIgnored     Result = "ignored"
	ResultFailed      Result = "failed"
)

// TenantResolver maps a back office integration token to the bot
// serving that tenant.
type TenantResolver interface {
	LookupByIntegrationToken(token string) (registry.BotHandle, bool)
}

// DocumentFetcher is the back office read surface the router needs.
type DocumentFetcher interface {
	GetDocument(ctx context.Context, token, endpoint string, id int64) (*backoffice.Document, error)
	GetOperations(ctx context.Context, token, endpoint string, documentID int64) ([]backoffice.Operation, error)
	GetPayment(ctx context.Context, token string, id int64) (*backoffice.Payment, error)
	GetWarehouseName(ctx context.Context, token string, stockID int64) (string, error)
}

// Sender delivers outbound messages.
type Sender interface {
	SendText(ctx context.Context, token string, chatID int64, text string, markup any) error
}

// Router turns back office webhook events into partner notifications.
type Router struct {
	log      *slog.Logger
	cache    *Cache
	tenants  TenantResolver
	fetcher  DocumentFetcher
	sender   Sender
	location *time.Location
}

func NewRouter(cache *Cache, tenants TenantResolver, fetcher DocumentFetcher, sender Sender, loc *time.Location) *Router {
	if loc == nil {
		loc = time.Local
	}
	return &Router{
		log:      slog.With(slog.String("service", "events")),
		cache:    cache,
		tenants:  tenants,
		fetcher:  fetcher,
		sender:   sender,
		location: loc,
	}
}

// Handle runs one event through the pipeline: dedup, tenant
// resolution, kind dispatch, document fetch, recipient resolution,
// formatting and delivery. The event id is marked seen before any
// processing, so a failed event is not retried by redelivery inside
// the dedup window.
func (r *Router) Handle(ctx context.Context, env Envelope) (Result, error) {
	log := r.log.With(slog.String("event_id", env.EventID), slog.String("action", env.Data.Action))

	if env.EventID != "" && !r.cache.Remember(env.EventID) {
		log.Warn("duplicate event skipped")
		return ResultDuplicate, nil
	}

	if env.IntegrationID == "" {
		log.Warn("event missing integration token")
		return ResultNoTenant, nil
	}
	handle, ok := r.tenants.LookupByIntegrationToken(env.IntegrationID)
	if !ok {
		log.Warn("no tenant for integration token")
		return ResultNoTenant, nil
	}
	log = log.With(slog.Int64("tenant_id", handle.TenantID))

	kind, cancelled, ok := ParseAction(env.Data.Action)
	if !ok {
		log.Info("unrecognized event action, ignoring")
		return ResultIgnored, nil
	}
	if env.Data.Data.ID == 0 {
		log.Warn("event missing document id")
		return ResultIgnored, nil
	}

	var (
		result Result
		err    error
	)
	if kind == KindPayment {
		result, err = r.handlePayment(ctx, handle, env.Data.Data.ID, cancelled)
	} else {
		result, err = r.handleDocument(ctx, handle, kind, env.Data.Data.ID, cancelled)
	}
	if err != nil {
		log.Error("event processing failed", slog.String("error", err.Error()))
		return ResultFailed, err
	}
	log.Info("event handled", slog.String("result", string(result)))
	return result, nil
}

func (r *Router) handleDocument(ctx context.Context, handle registry.BotHandle, kind Kind, docID int64, cancelled bool) (Result, error) {
	ep := kindEndpoints[kind]
	doc, err := r.fetcher.GetDocument(ctx, handle.IntegrationToken, ep.document, docID)
	if err != nil {
		return ResultFailed, fmt.Errorf("fetch document %d: %w", docID, err)
	}
	if doc == nil {
		return ResultIgnored, nil
	}

	ops, err := r.fetcher.GetOperations(ctx, handle.IntegrationToken, ep.operations, docID)
	if err != nil {
		return ResultFailed, fmt.Errorf("fetch operations for document %d: %w", docID, err)
	}
	if len(ops) == 0 {
		return ResultIgnored, nil
	}

	if doc.Partner == nil {
		return ResultNoRecipient, nil
	}
	chatID, ok := doc.Partner.ChatID()
	if !ok {
		return ResultNoRecipient, nil
	}

	text := receipt.FormatDocument(*doc, ops, receipt.DocumentOptions{
		Warehouse: r.warehouseName(ctx, handle.IntegrationToken, doc.WarehouseID()),
		Cancelled: cancelled,
		Return:    kind.Return(),
		UseCost:   kind.UseCost(),
		Location:  r.location,
	})
	if err := r.sender.SendText(ctx, handle.Token, chatID, text, nil); err != nil {
		return ResultFailed, fmt.Errorf("send receipt to chat %d: %w", chatID, err)
	}
	return ResultProcessed, nil
}

func (r *Router) handlePayment(ctx context.Context, handle registry.BotHandle, docID int64, cancelled bool) (Result, error) {
	payment, err := r.fetcher.GetPayment(ctx, handle.IntegrationToken, docID)
	if err != nil {
		return ResultFailed, fmt.Errorf("fetch payment %d: %w", docID, err)
	}
	if payment == nil {
		return ResultIgnored, nil
	}

	if payment.Partner == nil {
		return ResultNoRecipient, nil
	}
	chatID, ok := payment.Partner.ChatID()
	if !ok {
		return ResultNoRecipient, nil
	}

	warehouse := r.warehouseName(ctx, handle.IntegrationToken, payment.WarehouseID())
	text := receipt.FormatPayment(*payment, warehouse, cancelled, r.location)
	if err := r.sender.SendText(ctx, handle.Token, chatID, text, nil); err != nil {
		return ResultFailed, fmt.Errorf("send payment notification to chat %d: %w", chatID, err)
	}
	return ResultProcessed, nil
}

// warehouseName resolves the stock display name, falling back to the
// generic label when the stock is missing or the lookup fails.
func (r *Router) warehouseName(ctx context.Context, token string, stockID int64) string {
	if stockID == 0 {
		return receipt.DefaultWarehouseName
	}
	name, err := r.fetcher.GetWarehouseName(ctx, token, stockID)
	if err != nil {
		r.log.Warn("warehouse lookup failed",
			slog.Int64("stock_id", stockID),
			slog.String("error", err.Error()))
		return receipt.DefaultWarehouseName
	}
	if name == "" {
		return receipt.DefaultWarehouseName
	}
	return name
}
