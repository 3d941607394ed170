package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/partnergate/partnergate/internal/events"
)

// EventsHandler receives back office webhook deliveries on the shared
// integration endpoint.
type EventsHandler struct {
	logger *slog.Logger
	router *events.Router
}

func NewEventsHandler(log *slog.Logger, router *events.Router) *EventsHandler {
	return &EventsHandler{
		logger: log.With(slog.String("handler", "events")),
		router: router,
	}
}

func (h *EventsHandler) Register(e *echo.Echo) {
	e.POST("/external/webhook", h.Handle)
}

func (h *EventsHandler) Handle(c echo.Context) error {
	var env events.Envelope
	if err := json.NewDecoder(c.Request().Body).Decode(&env); err != nil {
		h.logger.Warn("malformed event payload", slog.String("error", err.Error()))
		return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "malformed payload"})
	}

	result, err := h.router.Handle(c.Request().Context(), env)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"ok":     false,
			"result": string(result),
			"error":  err.Error(),
		})
	}

	switch result {
	case events.ResultNoTenant:
		// Acknowledged so the sender stops retrying an event no tenant
		// will ever claim.
		return c.JSON(http.StatusOK, map[string]any{"ok": false, "result": string(result)})
	default:
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "result": string(result)})
	}
}
