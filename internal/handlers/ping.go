package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// BotCounter reports how many bots are currently registered.
type BotCounter interface {
	Size() int
}

type PingHandler struct {
	logger *slog.Logger
	bots   BotCounter
}

func NewPingHandler(log *slog.Logger, bots BotCounter) *PingHandler {
	return &PingHandler{
		logger: log.With(slog.String("handler", "ping")),
		bots:   bots,
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Ping)
	e.HEAD("/health", h.PingHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "partnergate",
		"bots":    h.bots.Size(),
	})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
