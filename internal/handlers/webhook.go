package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"github.com/partnergate/partnergate/internal/dispatch"
	"github.com/partnergate/partnergate/internal/registry"
)

// WebhookHandler receives chat platform updates on per-bot paths. The
// path segment is the bot token prefix published at registration.
type WebhookHandler struct {
	logger     *slog.Logger
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
}

func NewWebhookHandler(log *slog.Logger, reg *registry.Registry, dispatcher *dispatch.Dispatcher) *WebhookHandler {
	return &WebhookHandler{
		logger:     log.With(slog.String("handler", "webhook")),
		registry:   reg,
		dispatcher: dispatcher,
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook/:prefix", h.Handle)
}

func (h *WebhookHandler) Handle(c echo.Context) error {
	prefix := c.Param("prefix")
	handle, ok := h.registry.LookupByPrefix(prefix)
	if !ok {
		h.logger.Warn("update for unknown bot prefix", slog.String("prefix", prefix))
		return c.JSON(http.StatusNotFound, map[string]any{"ok": false, "error": "unknown bot"})
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(c.Request().Body).Decode(&update); err != nil {
		h.logger.Warn("malformed update payload",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()))
		return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "malformed update"})
	}

	// Always acknowledge: the platform retries non-2xx responses, and a
	// conversation error is not fixed by redelivering the update.
	if err := h.dispatcher.HandleUpdate(c.Request().Context(), handle, update); err != nil {
		h.logger.Error("update processing failed",
			slog.Int64("tenant_id", handle.TenantID),
			slog.String("error", err.Error()))
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}
