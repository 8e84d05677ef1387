package score

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"wdf-server/internal/games"
	"wdf-server/internal/platform/respond"
)

// Handler exposes score submission.
type Handler struct {
	store    Store
	registry *games.Registry
	validate *validator.Validate
	log      *slog.Logger
	now      func() time.Time
}

// NewHandler returns a Handler. now may be nil to use time.Now.
func NewHandler(store Store, registry *games.Registry, log *slog.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		store:    store,
		registry: registry,
		validate: validator.New(),
		log:      log,
		now:      now,
	}
}

type submitRequest struct {
	UserID    string `json:"userId" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
	Value     int    `json:"value" validate:"min=0"`
}

// Submit handles POST /wdf/{version}/scores.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	version, ok := respond.Version(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid game version")
		return
	}
	if err := h.registry.Require(version); err != nil {
		if errors.Is(err, games.ErrGameEditionUnavailable) {
			respond.Error(w, http.StatusNotFound, err.Error())
			return
		}
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s := &Score{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Version:   version,
		Value:     req.Value,
		CreatedAt: h.now().UTC(),
	}
	if err := h.store.Save(r.Context(), s); err != nil {
		h.log.Error("save score failed", slog.Int("version", version), slog.String("error", err.Error()))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond.JSON(w, http.StatusCreated, s)
}
