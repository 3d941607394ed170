package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/partnergate/partnergate/internal/telegram"
)

// ErrInvalidCredential is returned when the messaging platform rejects
// a bot token during registration.
var ErrInvalidCredential = errors.New("registry: invalid bot credential")

// prefixLen is how many leading characters of the bot token form the
// public webhook path segment. Long enough to be unique across bots,
// short enough to never expose the full secret.
const prefixLen = 10

// Registration is the input needed to bring a bot online.
type Registration struct {
	Token            string
	DisplayName      string
	TenantID         int64
	IntegrationToken string
	Language         string
}

// BotHandle is a registered, webhook-bound bot.
type BotHandle struct {
	Token            string
	DisplayName      string
	TenantID         int64
	IntegrationToken string
	Language         string
	Identity         telegram.Identity
	WebhookPath      string
	RegisteredAt     time.Time
}

// BotSummary is the admin-facing view of a registered bot. It carries
// the token prefix only, never the full credential.
type BotSummary struct {
	TokenPrefix  string    `json:"token_prefix"`
	DisplayName  string    `json:"display_name"`
	TenantID     int64     `json:"tenant_id"`
	Username     string    `json:"username"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registry keeps the set of live bots and their webhook bindings. All
// methods are safe for concurrent use.
type Registry struct {
	log           *slog.Logger
	client        telegram.Client
	publicBaseURL string

	mu       sync.RWMutex
	byToken  map[string]*BotHandle
	byPrefix map[string]*BotHandle
}

func New(client telegram.Client, publicBaseURL string) *Registry {
	return &Registry{
		log:           slog.With(slog.String("service", "registry")),
		client:        client,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		byToken:       make(map[string]*BotHandle),
		byPrefix:      make(map[string]*BotHandle),
	}
}

// TokenPrefix returns the public path segment derived from a bot token.
func TokenPrefix(token string) string {
	if len(token) <= prefixLen {
		return token
	}
	return token[:prefixLen]
}

// Register validates the credential, binds the webhook and publishes
// the web app menu button. Registering an already registered token is
// idempotent and returns the existing handle unchanged.
func (r *Registry) Register(ctx context.Context, reg Registration) (BotHandle, error) {
	r.mu.RLock()
	existing, ok := r.byToken[reg.Token]
	r.mu.RUnlock()
	if ok {
		return *existing, nil
	}

	identity, err := r.client.GetIdentity(ctx, reg.Token)
	if err != nil {
		return BotHandle{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	prefix := TokenPrefix(reg.Token)
	webhookPath := "/webhook/" + prefix
	// Without a public base URL there is nothing reachable to bind the
	// webhook or the menu button to.
	if r.publicBaseURL != "" {
		if err := r.client.SetWebhook(ctx, reg.Token, r.publicBaseURL+webhookPath); err != nil {
			return BotHandle{}, fmt.Errorf("bind webhook: %w", err)
		}

		if err := r.client.SetMenuButton(ctx, reg.Token, "Кабинет", r.publicBaseURL+"/webapp/"+prefix); err != nil {
			// The bot is functional without the menu button.
			r.log.Warn("set menu button failed",
				slog.String("bot", identity.Username),
				slog.String("error", err.Error()))
		}
	}

	handle := &BotHandle{
		Token:            reg.Token,
		DisplayName:      reg.DisplayName,
		TenantID:         reg.TenantID,
		IntegrationToken: reg.IntegrationToken,
		Language:         reg.Language,
		Identity:         identity,
		WebhookPath:      webhookPath,
		RegisteredAt:     time.Now().UTC(),
	}

	r.mu.Lock()
	if existing, ok := r.byToken[reg.Token]; ok {
		r.mu.Unlock()
		return *existing, nil
	}
	r.byToken[reg.Token] = handle
	r.byPrefix[prefix] = handle
	r.mu.Unlock()

	r.log.Info("bot registered",
		slog.String("bot", identity.Username),
		slog.Int64("tenant_id", reg.TenantID),
		slog.String("webhook_path", webhookPath))
	return *handle, nil
}

// Unregister unbinds the webhook and removes the bot. Returns false if
// the token was not registered.
func (r *Registry) Unregister(ctx context.Context, token string) bool {
	r.mu.Lock()
	handle, ok := r.byToken[token]
	if ok {
		delete(r.byToken, token)
		delete(r.byPrefix, TokenPrefix(token))
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	if err := r.client.DeleteWebhook(ctx, token); err != nil {
		r.log.Warn("delete webhook failed",
			slog.String("bot", handle.Identity.Username),
			slog.String("error", err.Error()))
	}
	r.log.Info("bot unregistered", slog.String("bot", handle.Identity.Username))
	return true
}

// Lookup resolves a full bot token to its handle.
func (r *Registry) Lookup(token string) (BotHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.byToken[token]
	if !ok {
		return BotHandle{}, false
	}
	return *handle, true
}

// LookupByPrefix resolves a webhook path segment to its handle.
func (r *Registry) LookupByPrefix(prefix string) (BotHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.byPrefix[prefix]
	if !ok {
		return BotHandle{}, false
	}
	return *handle, true
}

// LookupByIntegrationToken resolves a back office correlation token to
// the bot serving that tenant.
func (r *Registry) LookupByIntegrationToken(token string) (BotHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, handle := range r.byToken {
		if handle.IntegrationToken == token {
			return *handle, true
		}
	}
	return BotHandle{}, false
}

// Reconcile registers every given bot, logging and skipping failures so
// one broken credential does not keep the rest offline.
func (r *Registry) Reconcile(ctx context.Context, regs []Registration) {
	for _, reg := range regs {
		if _, err := r.Register(ctx, reg); err != nil {
			r.log.Error("bot registration failed",
				slog.String("name", reg.DisplayName),
				slog.Int64("tenant_id", reg.TenantID),
				slog.String("error", err.Error()))
		}
	}
	r.log.Info("bot reconciliation finished", slog.Int("registered", r.Size()))
}

// Size returns the number of registered bots.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

// Snapshot lists the registered bots for the admin surface, ordered by
// tenant id for stable output.
func (r *Registry) Snapshot() []BotSummary {
	r.mu.RLock()
	out := make([]BotSummary, 0, len(r.byToken))
	for _, h := range r.byToken {
		out = append(out, BotSummary{
			TokenPrefix:  TokenPrefix(h.Token),
			DisplayName:  h.DisplayName,
			TenantID:     h.TenantID,
			Username:     h.Identity.Username,
			RegisteredAt: h.RegisteredAt,
		})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}
