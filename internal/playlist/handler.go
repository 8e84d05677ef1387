package playlist

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"wdf-server/internal/catalog"
	"wdf-server/internal/games"
	"wdf-server/internal/platform/config"
	"wdf-server/internal/platform/respond"
)

// Handler exposes the playlist endpoints.
type Handler struct {
	mgr       *Manager
	durations config.Durations
	log       *slog.Logger
	now       func() time.Time
}

// NewHandler returns a Handler. now may be nil to use time.Now.
func NewHandler(mgr *Manager, durations config.Durations, log *slog.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{mgr: mgr, durations: durations, log: log, now: now}
}

// GetScreens handles GET /wdf/{version}/playlist.
func (h *Handler) GetScreens(w http.ResponseWriter, r *http.Request) {
	version, ok := respond.Version(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid game version")
		return
	}

	screens, err := h.mgr.Screens(r.Context(), version)
	if err != nil {
		switch {
		case errors.Is(err, games.ErrGameEditionUnavailable):
			respond.Error(w, http.StatusNotFound, err.Error())
		case errors.Is(err, catalog.ErrCatalogExhausted), errors.Is(err, ErrNoTheme):
			h.log.Error("playlist unavailable", slog.Int("version", version), slog.String("error", err.Error()))
			respond.Error(w, http.StatusServiceUnavailable, "playlist unavailable")
		default:
			h.log.Error("get playlist failed", slog.Int("version", version), slog.String("error", err.Error()))
			respond.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respond.JSON(w, http.StatusOK, screens)
}

// GetServerTime handles GET /wdf/{version}/server-time. Clients use it to
// align their clock with the screen timeline.
func (h *Handler) GetServerTime(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]float64{
		"t":                  float64(h.now().UnixMilli()) / 1000,
		"sendscore_interval": h.durations.SendStarsDelay / 1000,
	})
}
