package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/partnergate/partnergate/internal/registry"
)

// ScheduleReloader re-arms schedules from storage.
type ScheduleReloader interface {
	Reload(ctx context.Context) error
	ArmedJobs() []string
}

// AdminHandler serves the operational surface: registered bot
// inventory, schedule state and schedule reload.
type AdminHandler struct {
	logger    *slog.Logger
	registry  *registry.Registry
	schedules ScheduleReloader
}

func NewAdminHandler(log *slog.Logger, reg *registry.Registry, schedules ScheduleReloader) *AdminHandler {
	return &AdminHandler{
		logger:    log.With(slog.String("handler", "admin")),
		registry:  reg,
		schedules: schedules,
	}
}

func (h *AdminHandler) Register(e *echo.Echo) {
	e.GET("/admin/schedules/status", h.Status)
	e.GET("/admin/bots", h.Bots)
	e.POST("/admin/schedules/reload", h.ReloadSchedules)
}

func (h *AdminHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"bots":       h.registry.Size(),
		"armed_jobs": h.schedules.ArmedJobs(),
	})
}

func (h *AdminHandler) Bots(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"bots": h.registry.Snapshot(),
	})
}

func (h *AdminHandler) ReloadSchedules(c echo.Context) error {
	if err := h.schedules.Reload(c.Request().Context()); err != nil {
		h.logger.Error("schedule reload failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
	}
	jobs := h.schedules.ArmedJobs()
	h.logger.Info("schedules reloaded via admin", slog.Int("jobs", len(jobs)))
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "armed_jobs": jobs})
}
